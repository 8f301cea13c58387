package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/MikeSquared-Agency/canvass/internal/telegram"
)

// webhook accepts Bot API updates pushed by Telegram. When a secret is
// configured the request must carry it in the secret token header.
// Pipeline failures are handled inside the processor and still answer 200,
// otherwise Telegram redelivers the update.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.WebhookSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.WebhookSecret)) != 1 {
			s.logger.Warn("webhook secret mismatch", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	var u telegram.Update
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}
	s.deps.Updates.Process(r.Context(), u)
	w.WriteHeader(http.StatusOK)
}
