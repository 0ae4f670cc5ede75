package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tokenforge/authd"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// errorStatus maps engine errors to HTTP statuses. Anything unmapped is
// an internal failure; its text never reaches the client.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, authd.ErrInvalidAuthcode),
		errors.Is(err, authd.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, authd.ErrTooManyAuthcodes):
		return http.StatusTooManyRequests
	case errors.Is(err, authd.ErrUnauthorizedAccessToken),
		errors.Is(err, authd.ErrUnauthorizedRefreshToken),
		errors.Is(err, authd.ErrTokenPairMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, authd.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, authd.ErrTokenUnreadable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
