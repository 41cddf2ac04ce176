package engine

import (
	"context"
	"fmt"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/providers"
)

// Import copies a provider playlist into the local catalog as a new playlist
// owned by userID.
//
// Provider-native fields populate each song's provider id directly, so no
// resolution happens. A single song failing validation is recorded against the
// job and the rest continue; the terminal status reflects whether any song was
// dropped. Structural failures (no connection, playlist fetch rejected) end
// the job failed with no playlist created.
func (e *Engine) Import(ctx context.Context, progress chan<- ProgressUpdate, userID string, source models.Provider, providerPlaylistID string) (*models.Job, *models.Playlist, error) {
	adapter, err := e.registry.Get(source)
	if err != nil {
		return nil, nil, err
	}

	job := &models.Job{
		Kind:               models.JobImport,
		UserID:             userID,
		SourceProvider:     source,
		ProviderPlaylistID: providerPlaylistID,
	}
	if err := e.jobs.Create(ctx, job, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to create import job: %w", err)
	}
	if err := e.jobs.UpdateStatus(ctx, job.ID, models.JobInProgress); err != nil {
		return job, nil, err
	}

	e.sendProgress(progress, fetchSourceUpdate(string(source)))

	data, err := e.fetchSource(ctx, userID, adapter, providerPlaylistID)
	if err != nil {
		e.failJob(ctx, job.ID)
		return e.reload(ctx, job), nil, err
	}

	rows := make([]models.JobSong, 0, len(data.Songs))
	for i := range data.Songs {
		rows = append(rows, models.JobSong{
			Position: i,
			Title:    data.Songs[i].Title,
			Artist:   data.Songs[i].Artist,
			State:    models.SongPending,
		})
	}
	if err := e.jobs.AddSongs(ctx, job.ID, rows); err != nil {
		e.failJob(ctx, job.ID)
		return e.reload(ctx, job), nil, err
	}

	total := len(data.Songs)
	kept := make([]models.Song, 0, total)
	processed := 0
	cancelled := false

	for i := range data.Songs {
		song := data.Songs[i]
		row := &rows[i]
		row.JobID = job.ID

		if cancelled || ctx.Err() != nil {
			cancelled = true
			row.State = models.SongCancelled
			row.Reason = models.ReasonCancelled
		} else {
			e.sendProgress(progress, resolveSongUpdate(i+1, total, song.Title, song.Artist))
			if err := song.Validate(); err != nil {
				row.State = models.SongFailed
				row.Reason = err.Error()
			} else {
				id, _ := song.ProviderID(source)
				row.State = models.SongAdded
				row.ProviderTrackID = id
				kept = append(kept, song)
			}
		}

		if err := e.jobs.SaveSong(ctx, row); err != nil {
			e.logger.Error("failed to record song outcome", "job", job.ID, "position", i, "error", err)
		}

		processed++
		if err := e.jobs.SetProcessed(ctx, job.ID, processed); err != nil {
			e.logger.Error("failed to update progress", "job", job.ID, "error", err)
		}
	}

	playlist := &models.Playlist{
		Name:           data.Name,
		Description:    data.Description,
		CoverImageURL:  data.CoverImageURL,
		CreatorID:      userID,
		Songs:          kept,
		SourceProvider: source,
		OriginID:       providerPlaylistID,
	}

	e.sendProgress(progress, persistPlaylistUpdate(playlist.Name))
	if err := e.playlists.Create(ctx, playlist); err != nil {
		e.failJob(ctx, job.ID)
		return e.reload(ctx, job), nil, fmt.Errorf("failed to persist imported playlist: %w", err)
	}

	status := terminalStatus(rows)
	if err := e.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		return e.reload(ctx, job), playlist, err
	}

	final := e.reload(ctx, job)
	e.sendProgress(progress, jobDoneUpdate(string(final.Status), final.SongsProcessed, final.SongsTotal, playlist))
	return final, playlist, nil
}

// fetchSource loads the provider playlist holding the pair's provider lock for
// the token check and the fetch together.
func (e *Engine) fetchSource(ctx context.Context, userID string, adapter providers.Adapter, providerPlaylistID string) (*providers.PlaylistData, error) {
	lock := e.tokens.Locker(userID, adapter.Name())
	lock.Lock()
	defer lock.Unlock()

	token, err := e.tokens.EnsureValidTokenLocked(ctx, userID, adapter.Name())
	if err != nil {
		return nil, err
	}

	g := newGate(e.sleep)
	var data *providers.PlaylistData
	err = e.withRetry(ctx, g, func() error {
		var fetchErr error
		data, fetchErr = adapter.FetchPlaylist(ctx, token, providerPlaylistID)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source playlist: %w", err)
	}
	return data, nil
}

// reload refreshes the job from storage, falling back to the in-memory copy
// when the read fails.
func (e *Engine) reload(ctx context.Context, job *models.Job) *models.Job {
	fresh, err := e.jobs.Get(ctx, job.ID)
	if err != nil {
		e.logger.Error("failed to reload job", "job", job.ID, "error", err)
		return job
	}
	return fresh
}
