// Package server exposes the playlist service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mixtape-app/mixtape/internal/engine"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/repositories"
	"github.com/mixtape-app/mixtape/internal/shared"
)

const shutdownTimeout = 10 * time.Second

// Server wires the reconciliation engine and repositories into an HTTP API.
type Server struct {
	engine        *engine.Engine
	playlists     *repositories.PlaylistRepository
	users         *repositories.UserRepository
	jobs          *repositories.JobRepository
	notifications *repositories.NotificationRepository
	notifier      Notifier
	logger        *log.Logger
}

// Notifier publishes notification events raised by HTTP operations.
type Notifier interface {
	Publish(ctx context.Context, event models.Event) (int, error)
}

// New creates a Server. A nil logger falls back to the default stderr logger.
func New(eng *engine.Engine, playlists *repositories.PlaylistRepository, users *repositories.UserRepository, jobs *repositories.JobRepository, notifications *repositories.NotificationRepository, notifier Notifier, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Server{
		engine:        eng,
		playlists:     playlists,
		users:         users,
		jobs:          jobs,
		notifications: notifications,
		notifier:      notifier,
		logger:        logger,
	}
}

// Handler builds the chi router with the full route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Get("/music/search", s.handleSearch)
		r.Post("/music/import", s.handleImport)
		r.Post("/music/match", s.handleMatch)

		r.Get("/playlists", s.handleListPlaylists)
		r.Get("/playlists/shared", s.handleListShared)
		r.Get("/playlists/{id}", s.handleGetPlaylist)
		r.Post("/playlists/{id}/export", s.handleExport)
		r.Post("/playlists/{id}/share", s.handleShare)

		r.Get("/jobs/{id}", s.handleGetJob)

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{id}/read", s.handleMarkRead)
		r.Post("/notifications/read-all", s.handleMarkAllRead)
	})

	return r
}

// Run serves the API on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	s.logger.Infof("listening on %s", addr)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
