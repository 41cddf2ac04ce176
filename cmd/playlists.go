package main

import (
	"context"
	"fmt"

	"github.com/mixtape-app/mixtape/internal/formatter"
	"github.com/mixtape-app/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// ListPlaylists prints the user's own or shared-with playlists as JSON.
func (r *Runner) ListPlaylists(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	userID := cmd.String("user")

	if cmd.Bool("shared") {
		playlists, err := app.playlists.ListSharedWith(ctx, userID)
		if err != nil {
			return err
		}
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	playlists, err := app.playlists.ListByCreator(ctx, userID)
	if err != nil {
		return err
	}
	return r.writeJSON(playlists, cmd.Bool("pretty"))
}

// ShowPlaylist prints or exports one playlist in the requested format.
func (r *Runner) ShowPlaylist(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	playlistID := cmd.StringArg("playlist")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.playlists.Get(ctx, playlistID)
	if err != nil {
		return err
	}
	if !playlist.CanView(cmd.String("user")) {
		return fmt.Errorf("%w: playlist %s", shared.ErrForbidden, playlistID)
	}

	format := cmd.String("format")
	output := cmd.String("output")

	if output != "" {
		switch format {
		case "csv":
			result, err := formatter.WriteCSVExport(playlist, output)
			if err != nil {
				return err
			}
			return r.writePlain("Wrote %s and %s\n", result.SongsFile, result.MetadataFile)
		case "markdown":
			result, err := formatter.WriteMarkdownExport(playlist, output, playlist.CoverImageURL)
			if err != nil {
				return err
			}
			return r.writePlain("Wrote %s\n", result.Directory)
		case "text":
			path, err := formatter.WriteTextExport(playlist, output)
			if err != nil {
				return err
			}
			return r.writePlain("Wrote %s\n", path)
		default:
			return fmt.Errorf("%w: format %q cannot be written to a file", shared.ErrInvalidArgument, format)
		}
	}

	var data []byte
	switch format {
	case "json":
		return r.writeJSON(playlist, true)
	case "csv":
		data, err = formatter.ExportToCSV(playlist)
	case "markdown":
		data, err = formatter.ExportToMarkdown(playlist, "")
	case "text":
		data, err = formatter.ExportToText(playlist)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	return r.writePlain("%s", data)
}

// ListJobs prints the user's reconciliation jobs, newest first.
func (r *Runner) ListJobs(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	app, err := r.bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	jobs, err := app.jobs.ListByUser(ctx, cmd.String("user"))
	if err != nil {
		return err
	}
	return r.writeJSON(jobs, cmd.Bool("pretty"))
}
