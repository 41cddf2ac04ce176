// package engine implements playlist reconciliation between the local catalog
// and external providers.
//
// The core abstraction is Engine, which orchestrates imports, exports, and ad
// hoc match lookups. Each import or export runs as a reconciliation job with a
// forward-only state machine and per-song progress persisted as it happens, so
// an interrupted run can be resumed without repeating confirmed work.
// Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/notify"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/resolver"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// PlaylistStore is the slice of playlist persistence the engine needs.
type PlaylistStore interface {
	Get(ctx context.Context, id string) (*models.Playlist, error)
	Create(ctx context.Context, playlist *models.Playlist) error
	SetSongProviderID(ctx context.Context, songID string, provider models.Provider, trackID string) error
}

// JobStore persists reconciliation jobs and their per-song progress.
type JobStore interface {
	Create(ctx context.Context, job *models.Job, songs []models.JobSong) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Songs(ctx context.Context, jobID string) ([]models.JobSong, error)
	AddSongs(ctx context.Context, jobID string, songs []models.JobSong) error
	UpdateStatus(ctx context.Context, jobID string, next models.JobStatus) error
	SetProcessed(ctx context.Context, jobID string, processed int) error
	SetProviderPlaylistID(ctx context.Context, jobID, providerPlaylistID string) error
	SaveSong(ctx context.Context, song *models.JobSong) error
}

// Notifier delivers post-reconciliation events. Implemented by notify.Fanout.
type Notifier interface {
	Publish(ctx context.Context, event models.Event) (int, error)
}

// Opts bounds the engine's in-job concurrency and retry behavior.
type Opts struct {
	// SongConcurrency caps in-flight song resolutions per job.
	SongConcurrency int
	// RetryAttempts bounds retries of transient provider failures per song.
	RetryAttempts int
	// BackoffBase seeds the exponential backoff between retries.
	BackoffBase time.Duration
}

func (o Opts) withDefaults() Opts {
	if o.SongConcurrency <= 0 {
		o.SongConcurrency = 4
	}
	if o.SongConcurrency > 8 {
		o.SongConcurrency = 8
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 500 * time.Millisecond
	}
	return o
}

// Engine orchestrates reconciliation operations. Provider call sequences for
// one (user, provider) pair hold the token manager's keyed lock; writes to one
// playlist's song list are serialized per playlist.
type Engine struct {
	registry  *providers.Registry
	tokens    *providers.TokenManager
	resolver  *resolver.Resolver
	playlists PlaylistStore
	jobs      JobStore
	notifier  Notifier
	logger    *log.Logger
	opts      Opts

	mu            sync.Mutex
	playlistLocks map[string]*sync.Mutex

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Engine. The notifier may be nil when no fan-out is wired
// (CLI one-shot runs).
func New(registry *providers.Registry, tokens *providers.TokenManager, playlists PlaylistStore, jobs JobStore, notifier Notifier, logger *log.Logger, opts Opts) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		registry:      registry,
		tokens:        tokens,
		resolver:      resolver.New(),
		playlists:     playlists,
		jobs:          jobs,
		notifier:      notifier,
		logger:        logger,
		opts:          opts.withDefaults(),
		playlistLocks: make(map[string]*sync.Mutex),
		sleep:         sleepCtx,
	}
}

var _ Notifier = (*notify.Fanout)(nil)

// playlistLock returns the mutex serializing song-list writes for one
// playlist.
func (e *Engine) playlistLock(playlistID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.playlistLocks[playlistID]
	if !ok {
		lock = &sync.Mutex{}
		e.playlistLocks[playlistID] = lock
	}
	return lock
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// failJob moves the job to its terminal failed state, logging rather than
// propagating a transition error so the original cause wins.
func (e *Engine) failJob(ctx context.Context, jobID string) {
	if err := e.jobs.UpdateStatus(ctx, jobID, models.JobFailed); err != nil {
		e.logger.Error("failed to mark job failed", "job", jobID, "error", err)
	}
}

// withRetry runs fn with bounded retries. Rate-limit responses pause the whole
// job's in-flight work through the shared gate before the retry; other
// transient provider failures back off exponentially. Non-transient errors
// return immediately.
func (e *Engine) withRetry(ctx context.Context, g *gate, fn func() error) error {
	var err error
	for attempt := 0; attempt <= e.opts.RetryAttempts; attempt++ {
		if gateErr := g.wait(ctx); gateErr != nil {
			return gateErr
		}

		err = fn()
		if err == nil {
			return nil
		}

		var rateErr *shared.RateLimitedError
		switch {
		case errors.As(err, &rateErr):
			pause := rateErr.RetryAfter
			if backoff := e.backoff(attempt); backoff > pause {
				pause = backoff
			}
			g.pause(pause)
		case errors.Is(err, shared.ErrProviderUnavailable):
			if sleepErr := e.sleep(ctx, e.backoff(attempt)); sleepErr != nil {
				return sleepErr
			}
		default:
			return err
		}
	}
	return err
}

func (e *Engine) backoff(attempt int) time.Duration {
	return e.opts.BackoffBase * (1 << attempt)
}

// gate pauses every worker in a job when any of them hits a rate limit.
type gate struct {
	mu    sync.Mutex
	until time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newGate(sleep func(ctx context.Context, d time.Duration) error) *gate {
	return &gate{sleep: sleep}
}

// wait blocks until any active pause has elapsed.
func (g *gate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		g.mu.Unlock()

		if remaining <= 0 {
			return nil
		}
		if err := g.sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// pause extends the shared hold. Overlapping pauses keep the latest deadline.
func (g *gate) pause(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline := time.Now().Add(d)
	if deadline.After(g.until) {
		g.until = deadline
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jobSongsFromPlaylist builds the initial per-song progress rows in playlist
// order. When a prior job is supplied, confirmed outcomes carry over so the
// resumed run skips them.
func jobSongsFromPlaylist(playlist *models.Playlist, prior []models.JobSong) []models.JobSong {
	var priorBySong map[string]models.JobSong
	if len(prior) > 0 {
		priorBySong = make(map[string]models.JobSong, len(prior))
		for _, row := range prior {
			if row.SongID != "" {
				priorBySong[row.SongID] = row
			}
		}
	}

	songs := make([]models.JobSong, 0, len(playlist.Songs))
	for i := range playlist.Songs {
		song := &playlist.Songs[i]
		row := models.JobSong{
			Position: i,
			SongID:   song.ID,
			Title:    song.Title,
			Artist:   song.Artist,
			State:    models.SongPending,
		}
		if previous, ok := priorBySong[song.ID]; ok && previous.Settled() {
			row.State = previous.State
			row.ProviderTrackID = previous.ProviderTrackID
		}
		songs = append(songs, row)
	}
	return songs
}

func settledCount(songs []models.JobSong) int {
	count := 0
	for i := range songs {
		switch songs[i].State {
		case models.SongAdded, models.SongFailed, models.SongCancelled:
			count++
		}
	}
	return count
}

// terminalStatus decides the job's final state from its song outcomes.
func terminalStatus(songs []models.JobSong) models.JobStatus {
	failures := 0
	for i := range songs {
		switch songs[i].State {
		case models.SongFailed, models.SongCancelled:
			failures++
		}
	}
	if failures == 0 {
		return models.JobCompleted
	}
	return models.JobPartiallyFailed
}
