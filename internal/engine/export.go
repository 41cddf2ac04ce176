package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/resolver"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// ExportOpts tunes a single export run.
type ExportOpts struct {
	// ResumeJobID continues a prior partially failed export of the same
	// playlist and target: confirmed song outcomes carry over and the
	// provider-side playlist is reused instead of created again.
	ResumeJobID string
}

// Export pushes a local playlist to the target provider.
//
// The caller must own the playlist or have had it shared with them. The
// target playlist is created first; each song is then resolved against the
// target catalog with bounded concurrency and every confident match is pushed
// through one addSongs sequence in playlist order. Songs without a match are
// recorded against the job and never abort the export: the job ends completed
// only when every song made it, else partially_failed. Structural failures
// (no connection, playlist creation rejected) end the job failed.
func (e *Engine) Export(ctx context.Context, progress chan<- ProgressUpdate, userID, playlistID string, target models.Provider, opts ExportOpts) (*models.Job, error) {
	adapter, err := e.registry.Get(target)
	if err != nil {
		return nil, err
	}

	playlist, err := e.playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if !playlist.CanExport(userID) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrForbidden, playlistID)
	}

	// One export mutates this playlist's song rows (learned provider ids);
	// two jobs never touch the same playlist concurrently.
	plLock := e.playlistLock(playlistID)
	plLock.Lock()
	defer plLock.Unlock()

	var prior []models.JobSong
	providerPlaylistID := ""
	if opts.ResumeJobID != "" {
		priorJob, err := e.jobs.Get(ctx, opts.ResumeJobID)
		if err != nil {
			return nil, err
		}
		if priorJob.Kind != models.JobExport || priorJob.PlaylistID != playlistID || priorJob.TargetProvider != target {
			return nil, fmt.Errorf("%w: job %s does not match this export", shared.ErrInvalidInput, opts.ResumeJobID)
		}
		prior, err = e.jobs.Songs(ctx, opts.ResumeJobID)
		if err != nil {
			return nil, err
		}
		providerPlaylistID = priorJob.ProviderPlaylistID
	}

	rows := jobSongsFromPlaylist(playlist, prior)
	job := &models.Job{
		Kind:               models.JobExport,
		UserID:             userID,
		TargetProvider:     target,
		PlaylistID:         playlistID,
		ProviderPlaylistID: providerPlaylistID,
	}
	if err := e.jobs.Create(ctx, job, rows); err != nil {
		return nil, fmt.Errorf("failed to create export job: %w", err)
	}
	if err := e.jobs.UpdateStatus(ctx, job.ID, models.JobInProgress); err != nil {
		return e.reload(ctx, job), err
	}

	// Provider calls for this (user, provider) pair stay mutually exclusive
	// for the whole job: token refresh and catalog traffic never race.
	lock := e.tokens.Locker(userID, target)
	lock.Lock()
	defer lock.Unlock()

	token, err := e.tokens.EnsureValidTokenLocked(ctx, userID, target)
	if err != nil {
		e.failJob(ctx, job.ID)
		return e.reload(ctx, job), err
	}

	g := newGate(e.sleep)

	if providerPlaylistID == "" {
		e.sendProgress(progress, createDestinationUpdate(string(target)))
		err = e.withRetry(ctx, g, func() error {
			var createErr error
			providerPlaylistID, createErr = adapter.CreatePlaylist(ctx, token, e.exportMeta(playlist))
			return createErr
		})
		if err != nil {
			e.failJob(ctx, job.ID)
			return e.reload(ctx, job), fmt.Errorf("failed to create target playlist: %w", err)
		}
		if err := e.jobs.SetProviderPlaylistID(ctx, job.ID, providerPlaylistID); err != nil {
			e.logger.Error("failed to record provider playlist", "job", job.ID, "error", err)
		}
	}

	e.resolveSongs(ctx, progress, g, job.ID, adapter, token, playlist, rows)
	e.pushSongs(ctx, progress, g, job.ID, adapter, token, providerPlaylistID, rows)

	if err := e.jobs.SetProcessed(ctx, job.ID, len(rows)); err != nil {
		e.logger.Error("failed to update progress", "job", job.ID, "error", err)
	}
	status := terminalStatus(rows)
	if err := e.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		return e.reload(ctx, job), err
	}

	e.notifyExport(ctx, userID, playlist, status, target)

	final := e.reload(ctx, job)
	e.sendProgress(progress, jobDoneUpdate(string(final.Status), final.SongsProcessed, final.SongsTotal, nil))
	return final, nil
}

func (e *Engine) exportMeta(playlist *models.Playlist) providers.PlaylistMeta {
	return providers.PlaylistMeta{
		Name:        playlist.Name,
		Description: playlist.Description,
		Public:      playlist.IsPublic,
	}
}

// resolveSongs matches every still-pending row against the target catalog
// with bounded concurrency. Outcomes land in rows in place and are persisted
// per song as they settle.
func (e *Engine) resolveSongs(ctx context.Context, progress chan<- ProgressUpdate, g *gate, jobID string, adapter providers.Adapter, token string, playlist *models.Playlist, rows []models.JobSong) {
	pending := make(chan int, len(rows))
	for i := range rows {
		if rows[i].State == models.SongPending {
			pending <- i
		}
	}
	close(pending)

	total := len(rows)
	var mu sync.Mutex
	processed := settledCount(rows)

	var wg sync.WaitGroup
	for w := 0; w < e.opts.SongConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range pending {
				row := &rows[i]
				song := playlist.Songs[row.Position]

				e.sendProgress(progress, resolveSongUpdate(row.Position+1, total, song.Title, song.Artist))

				result, err := e.resolveOne(ctx, g, adapter, token, song)
				mu.Lock()
				switch {
				case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
					row.State = models.SongCancelled
					row.Reason = models.ReasonCancelled
					processed++
				case err != nil:
					row.State = models.SongFailed
					row.Reason = err.Error()
					processed++
				case !result.Matched():
					row.State = models.SongFailed
					row.Reason = models.ReasonNoMatchFound
					processed++
				default:
					row.State = models.SongMatched
					row.ProviderTrackID = result.ProviderID
				}
				row.JobID = jobID
				count := processed
				mu.Unlock()

				if err := e.jobs.SaveSong(ctx, row); err != nil {
					e.logger.Error("failed to record song outcome", "job", jobID, "position", row.Position, "error", err)
				}
				if err := e.jobs.SetProcessed(ctx, jobID, count); err != nil {
					e.logger.Error("failed to update progress", "job", jobID, "error", err)
				}

				if row.State == models.SongMatched && song.ID != "" {
					if err := e.playlists.SetSongProviderID(ctx, song.ID, adapter.Name(), row.ProviderTrackID); err != nil {
						e.logger.Error("failed to persist learned match", "song", song.ID, "error", err)
					}
				}
			}
		}()
	}
	wg.Wait()
}

func (e *Engine) resolveOne(ctx context.Context, g *gate, adapter providers.Adapter, token string, song models.Song) (resolver.MatchResult, error) {
	var result resolver.MatchResult
	err := e.withRetry(ctx, g, func() error {
		var resolveErr error
		result, resolveErr = e.resolver.Resolve(ctx, adapter, token, song)
		return resolveErr
	})
	return result, err
}

// pushSongs issues the addSongs sequence for every matched row in playlist
// order. A partial write marks exactly the confirmed prefix added and the
// remainder failed; already-added rows from a resumed run are never re-sent.
func (e *Engine) pushSongs(ctx context.Context, progress chan<- ProgressUpdate, g *gate, jobID string, adapter providers.Adapter, token, providerPlaylistID string, rows []models.JobSong) {
	if ctx.Err() != nil {
		e.cancelRemaining(ctx, jobID, rows)
		return
	}

	var matched []*models.JobSong
	for i := range rows {
		if rows[i].State == models.SongMatched {
			matched = append(matched, &rows[i])
		}
	}
	if len(matched) == 0 {
		return
	}

	ids := make([]string, 0, len(matched))
	for _, row := range matched {
		ids = append(ids, row.ProviderTrackID)
	}

	e.sendProgress(progress, pushSongsUpdate(len(ids)))

	err := e.withRetry(ctx, g, func() error {
		return adapter.AddSongs(ctx, token, providerPlaylistID, ids)
	})

	added := len(matched)
	reason := ""
	if err != nil {
		var partial *shared.PartialWriteError
		if errors.As(err, &partial) {
			added = partial.Added
		} else {
			added = 0
		}
		reason = err.Error()
		e.logger.Error("provider write failed", "job", jobID, "added", added, "error", err)
	}

	for i, row := range matched {
		if i < added {
			row.State = models.SongAdded
		} else {
			row.State = models.SongFailed
			row.Reason = reason
		}
		if saveErr := e.jobs.SaveSong(ctx, row); saveErr != nil {
			e.logger.Error("failed to record song outcome", "job", jobID, "position", row.Position, "error", saveErr)
		}
	}
}

// cancelRemaining marks songs that never reached the provider as cancelled.
// Already-applied provider-side changes are not rolled back.
func (e *Engine) cancelRemaining(ctx context.Context, jobID string, rows []models.JobSong) {
	for i := range rows {
		row := &rows[i]
		if row.State != models.SongPending && row.State != models.SongMatched {
			continue
		}
		row.State = models.SongCancelled
		row.Reason = models.ReasonCancelled
		if err := e.jobs.SaveSong(ctx, row); err != nil {
			e.logger.Error("failed to record cancellation", "job", jobID, "position", row.Position, "error", err)
		}
	}
}

// notifyExport tells the playlist creator when someone they shared with
// exported the playlist.
func (e *Engine) notifyExport(ctx context.Context, userID string, playlist *models.Playlist, status models.JobStatus, target models.Provider) {
	if e.notifier == nil || userID == playlist.CreatorID {
		return
	}
	if status != models.JobCompleted && status != models.JobPartiallyFailed {
		return
	}

	_, err := e.notifier.Publish(ctx, models.Event{
		Kind:            models.NotifyPlaylistExported,
		ActorUserID:     userID,
		AffectedUserIDs: []string{playlist.CreatorID},
		Payload: map[string]string{
			"playlistId":   playlist.ID,
			"playlistName": playlist.Name,
			"provider":     string(target),
		},
	})
	if err != nil {
		e.logger.Error("export notification failed", "playlist", playlist.ID, "error", err)
	}
}
