package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mixtape-app/mixtape/internal/shared"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// respondError maps domain sentinel errors onto HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrUnknownProvider),
		errors.Is(err, shared.ErrServiceNotConnected),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrSongNotFound),
		errors.Is(err, shared.ErrUserNotFound),
		errors.Is(err, shared.ErrJobNotFound),
		errors.Is(err, shared.ErrNotificationNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return shared.ErrInvalidInput
	}
	return nil
}
