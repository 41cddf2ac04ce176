package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mixtape-app/mixtape/internal/engine"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/resolver"
	"github.com/mixtape-app/mixtape/internal/shared"
)

const defaultSearchLimit = 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	providerName := r.URL.Query().Get("provider")
	limit := queryInt(r, "limit", defaultSearchLimit)

	if providerName == "" || providerName == "all" {
		results, err := s.engine.SearchAll(r.Context(), userID(r.Context()), query, limit)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	provider, err := models.ParseProvider(providerName)
	if err != nil {
		s.respondError(w, err)
		return
	}

	songs, err := s.engine.Search(r.Context(), userID(r.Context()), query, provider, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"provider": provider, "songs": songs})
}

type importRequest struct {
	Provider   string `json:"provider"`
	PlaylistID string `json:"playlistId"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	provider, err := models.ParseProvider(req.Provider)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.PlaylistID == "" {
		s.respondError(w, fmt.Errorf("%w: playlistId is required", shared.ErrInvalidInput))
		return
	}

	job, playlist, err := s.engine.Import(r.Context(), nil, userID(r.Context()), provider, req.PlaylistID)
	if err != nil {
		if job == nil {
			s.respondError(w, err)
			return
		}
		// The job record exists even when it failed; return it with the error.
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "job": job})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"job": job, "playlist": playlist})
}

type matchRequest struct {
	Song     models.Song `json:"song"`
	Provider string      `json:"provider"`
}

type matchResponse struct {
	Matched bool `json:"matched"`
	resolver.MatchResult
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	provider, err := models.ParseProvider(req.Provider)
	if err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.engine.Match(r.Context(), userID(r.Context()), req.Song, provider)
	if err != nil {
		s.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchResponse{Matched: result.Matched(), MatchResult: result})
}

type exportRequest struct {
	Provider    string `json:"provider"`
	ResumeJobID string `json:"resumeJobId,omitempty"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	provider, err := models.ParseProvider(req.Provider)
	if err != nil {
		s.respondError(w, err)
		return
	}

	playlistID := chi.URLParam(r, "id")
	opts := engine.ExportOpts{ResumeJobID: req.ResumeJobID}

	job, err := s.engine.Export(r.Context(), nil, userID(r.Context()), playlistID, provider, opts)
	if err != nil {
		if job == nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "job": job})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

type shareRequest struct {
	UserIDs []string `json:"userIds"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if len(req.UserIDs) == 0 {
		s.respondError(w, fmt.Errorf("%w: userIds is required", shared.ErrInvalidInput))
		return
	}

	actor := userID(r.Context())
	playlist, err := s.playlists.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if playlist.CreatorID != actor {
		s.respondError(w, shared.ErrForbidden)
		return
	}

	// Unknown users and users already shared with are skipped, not errors.
	var added []string
	for _, id := range req.UserIDs {
		if id == actor {
			continue
		}
		if _, err := s.users.Get(r.Context(), id); err != nil {
			continue
		}
		changed, err := s.playlists.Share(r.Context(), playlist.ID, id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		if changed {
			added = append(added, id)
		}
	}

	if len(added) > 0 && s.notifier != nil {
		event := models.Event{
			Kind:            models.NotifyPlaylistShared,
			ActorUserID:     actor,
			AffectedUserIDs: added,
			Payload: map[string]string{
				"playlistId":   playlist.ID,
				"playlistName": playlist.Name,
			},
		}
		if _, err := s.notifier.Publish(r.Context(), event); err != nil {
			s.logger.Error("share notification fan-out", "playlist", playlist.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"shared": added})
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.playlists.ListByCreator(r.Context(), userID(r.Context()))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.playlists.ListSharedWith(r.Context(), userID(r.Context()))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := s.playlists.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !playlist.CanView(userID(r.Context())) {
		s.respondError(w, shared.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if job.UserID != userID(r.Context()) {
		s.respondError(w, shared.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := s.notifications.ListForUser(r.Context(), userID(r.Context()), unreadOnly)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := s.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), userID(r.Context()))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	count, err := s.notifications.MarkAllRead(r.Context(), userID(r.Context()))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": count})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
