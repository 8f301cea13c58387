package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/canvass/internal/allowlist"
	"github.com/MikeSquared-Agency/canvass/internal/session"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps domain errors to HTTP status codes. Configuration and
// substrate failures fall through to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, allowlist.ErrMissingID), errors.Is(err, allowlist.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, allowlist.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
