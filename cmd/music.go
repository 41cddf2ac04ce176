package main

import (
	"context"
	"fmt"

	"github.com/mixtape-app/mixtape/internal/engine"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// SearchMusic searches one or all connected provider catalogs.
func (r *Runner) SearchMusic(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	userID := cmd.String("user")
	limit := int(cmd.Int("limit"))

	providerName := cmd.String("provider")
	if providerName == "all" {
		results, err := app.engine.SearchAll(ctx, userID, query, limit)
		if err != nil {
			return err
		}
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	provider, err := models.ParseProvider(providerName)
	if err != nil {
		return err
	}

	songs, err := app.engine.Search(ctx, userID, query, provider, limit)
	if err != nil {
		return err
	}
	return r.writeJSON(songs, cmd.Bool("pretty"))
}

// MatchSong resolves one song against a provider catalog and prints the
// match with its confidence and alternatives.
func (r *Runner) MatchSong(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	provider, err := models.ParseProvider(cmd.String("provider"))
	if err != nil {
		return err
	}

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	song := models.Song{
		Title:           cmd.String("title"),
		Artist:          cmd.String("artist"),
		Album:           cmd.String("album"),
		DurationSeconds: int(cmd.Int("duration")),
	}

	result, err := app.engine.Match(ctx, cmd.String("user"), song, provider)
	if err != nil {
		return err
	}

	if !result.Matched() {
		r.writePlain("No confident match found for %q by %q\n", song.Title, song.Artist)
		if len(result.Alternatives) == 0 {
			return nil
		}
		r.writePlain("Closest candidates:\n")
	}
	return r.writeJSON(result, cmd.Bool("pretty"))
}

// ImportPlaylist pulls a provider playlist into the library.
func (r *Runner) ImportPlaylist(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	providerPlaylistID := cmd.StringArg("playlist")
	if providerPlaylistID == "" {
		return fmt.Errorf("%w: provider playlist id", shared.ErrMissingArgument)
	}

	provider, err := models.ParseProvider(cmd.String("provider"))
	if err != nil {
		return err
	}

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	r.writePlain("Importing %s playlist %s...\n\n", provider, providerPlaylistID)

	progressCh := make(chan engine.ProgressUpdate, 50)
	done := r.renderProgress(progressCh)

	job, playlist, err := app.engine.Import(ctx, progressCh, cmd.String("user"), provider, providerPlaylistID)
	close(progressCh)
	<-done

	if err != nil {
		if job != nil {
			r.writePlain("\nImport failed (job %s, status %s)\n", job.ID, job.Status)
		}
		return err
	}

	r.writePlainHeader("Import Complete")
	r.writePlain("Playlist: %s (%d songs)\n", playlist.Name, len(playlist.Songs))
	r.writePlain("Job: %s (%s)\n", job.ID, job.Status)
	r.reportFailures(job)
	return nil
}

// ExportPlaylist pushes a library playlist to a provider.
func (r *Runner) ExportPlaylist(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	playlistID := cmd.StringArg("playlist")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	provider, err := models.ParseProvider(cmd.String("provider"))
	if err != nil {
		return err
	}

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	r.writePlain("Exporting playlist %s to %s...\n\n", playlistID, provider)

	progressCh := make(chan engine.ProgressUpdate, 50)
	done := r.renderProgress(progressCh)

	opts := engine.ExportOpts{ResumeJobID: cmd.String("resume")}
	job, err := app.engine.Export(ctx, progressCh, cmd.String("user"), playlistID, provider, opts)
	close(progressCh)
	<-done

	if err != nil {
		if job != nil {
			r.writePlain("\nExport failed (job %s, status %s)\n", job.ID, job.Status)
			r.writePlain("Resume with: mixtape export %s -p %s --resume %s\n", playlistID, provider, job.ID)
		}
		return err
	}

	r.writePlainHeader("Export Complete")
	r.writePlain("Job: %s (%s)\n", job.ID, job.Status)
	r.writePlain("Songs: %d/%d processed\n", job.SongsProcessed, job.SongsTotal)
	r.reportFailures(job)
	if job.Status == models.JobPartiallyFailed {
		r.writePlain("\nRetry the failures with: mixtape export %s -p %s --resume %s\n", playlistID, provider, job.ID)
	}
	return nil
}

// renderProgress consumes engine updates and prints one line per event.
// The returned channel closes when the progress channel drains.
func (r *Runner) renderProgress(progressCh <-chan engine.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case engine.FetchSource, engine.CreateDestination, engine.PersistPlaylist:
				r.writePlain("• %s\n", update.Message)
			case engine.ResolveSongs:
				r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case engine.PushSongs:
				r.writePlain("• %s\n", update.Message)
			case engine.JobDone:
				r.writePlain("\n%s\n", update.Message)
			}
		}
	}()
	return done
}

// reportFailures prints per-song failure reasons for a terminal job.
func (r *Runner) reportFailures(job *models.Job) {
	if job == nil || len(job.FailedSongs) == 0 {
		return
	}
	r.writePlain("\n%d songs were not reconciled:\n", len(job.FailedSongs))
	for _, song := range job.FailedSongs {
		reason := song.Reason
		if reason == "" {
			reason = string(song.State)
		}
		r.writePlain("  ✗ %s - %s (%s)\n", song.Title, song.Artist, reason)
	}
}
