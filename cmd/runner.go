package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/mixtape-app/mixtape/internal/engine"
	"github.com/mixtape-app/mixtape/internal/notify"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/repositories"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

// app bundles the wired service graph commands operate on. Built per
// invocation so each command opens and closes its own database handle.
type app struct {
	db            *sqlx.DB
	playlists     *repositories.PlaylistRepository
	users         *repositories.UserRepository
	jobs          *repositories.JobRepository
	notifications *repositories.NotificationRepository
	connections   *repositories.ConnectionRepository
	registry      *providers.Registry
	tokens        *providers.TokenManager
	fanout        *notify.Fanout
	engine        *engine.Engine
}

func (a *app) Close() error {
	return a.db.Close()
}

// bootstrap opens the database and wires repositories, adapters, and the
// reconciliation engine from the loaded configuration.
func (r *Runner) bootstrap() (*app, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	playlists := repositories.NewPlaylistRepository(db)
	users := repositories.NewUserRepository(db)
	jobs := repositories.NewJobRepository(db)
	notifications := repositories.NewNotificationRepository(db)
	connections := repositories.NewConnectionRepository(db)

	clientOpts := providers.ClientOpts{
		RequestsPerSec: r.config.Engine.RateLimitPerSec,
		Burst:          r.config.Engine.RateLimitBurst,
	}

	spotify := providers.NewSpotifyAdapter(clientOpts)
	apple := providers.NewAppleMusicAdapter(r.config.Providers.AppleMusic, clientOpts)
	amazon := providers.NewAmazonMusicAdapter(clientOpts)
	registry := providers.NewRegistry(spotify, apple, amazon)

	tokens := providers.NewTokenManager(connections)
	tokens.RegisterRefresher(spotify.Name(), &providers.OAuthRefresher{
		Config: providers.SpotifyOAuthConfig(r.config.Providers.Spotify),
	})
	tokens.RegisterRefresher(amazon.Name(), &providers.OAuthRefresher{
		Config: providers.AmazonOAuthConfig(r.config.Providers.AmazonMusic),
	})

	fanout := notify.NewFanout(notifications, r.logger)

	eng := engine.New(registry, tokens, playlists, jobs, fanout, r.logger, engine.Opts{
		SongConcurrency: r.config.Engine.SongConcurrency,
		RetryAttempts:   r.config.Engine.RetryAttempts,
		BackoffBase:     time.Duration(r.config.Engine.BackoffBaseMillis) * time.Millisecond,
	})

	return &app{
		db:            db,
		playlists:     playlists,
		users:         users,
		jobs:          jobs,
		notifications: notifications,
		connections:   connections,
		registry:      registry,
		tokens:        tokens,
		fanout:        fanout,
		engine:        eng,
	}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
