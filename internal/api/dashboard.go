package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/canvass/internal/allowlist"
	"github.com/MikeSquared-Agency/canvass/internal/records"
)

type ctxKey struct{}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type delegateRequest struct {
	CollectorID string `json:"collectorId"`
	DisplayName string `json:"displayName"`
	// UserID is the field name older dashboard builds send.
	UserID string `json:"userId,omitempty"`
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireSession rejects requests without a live session token and stores
// the principal in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := s.deps.Auth.Principal(bearerToken(r))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, principal)))
	})
}

func principalFrom(ctx context.Context) string {
	p, _ := ctx.Value(ctxKey{}).(string)
	return p
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.deps.Auth.Login(req.Username, req.Password)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusUnauthorized {
			s.logger.Warn("dashboard login rejected", "username", req.Username, "remote", r.RemoteAddr)
		} else {
			s.logger.Error("dashboard login failed", "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("dashboard login", "username", req.Username)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.deps.Auth.Logout(token)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": s.deps.Auth.Validate(bearerToken(r))})
}

func (s *Server) listDelegates(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Collectors.List(r.Context())
	if err != nil {
		s.logger.Error("list collectors failed", "error", err)
		writeError(w, errorStatus(err), "failed to read delegates")
		return
	}
	if list == nil {
		list = []allowlist.Collector{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"delegates": list})
}

func (s *Server) addDelegate(w http.ResponseWriter, r *http.Request) {
	var req delegateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := req.CollectorID
	if strings.TrimSpace(id) == "" {
		id = req.UserID
	}

	if err := s.deps.Collectors.Add(r.Context(), id, req.DisplayName); err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("add collector failed", "collector_id", id, "error", err)
			writeError(w, status, "failed to add delegate")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("delegate added", "collector_id", strings.TrimSpace(id), "by", principalFrom(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "collectorId": strings.TrimSpace(id)})
}

func (s *Server) removeDelegate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectorID")
	if err := s.deps.Collectors.Remove(r.Context(), id); err != nil {
		status := errorStatus(err)
		if errors.Is(err, allowlist.ErrNotFound) {
			writeError(w, status, err.Error())
			return
		}
		s.logger.Error("remove collector failed", "collector_id", id, "error", err)
		writeError(w, status, "failed to remove delegate")
		return
	}
	s.logger.Info("delegate removed", "collector_id", id, "by", principalFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stats.Compute(r.Context())
	if err != nil {
		s.logger.Error("compute stats failed", "error", err)
		writeError(w, errorStatus(err), "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listVoters(w http.ResponseWriter, r *http.Request) {
	voters, err := s.deps.Voters.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list voters failed", "error", err)
		writeError(w, errorStatus(err), "failed to read voters")
		return
	}
	if voters == nil {
		voters = []records.VoterRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voters": voters, "count": len(voters)})
}

func (s *Server) setup(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Setup(r.Context())
	if err != nil {
		s.logger.Error("range setup failed", "error", err)
		writeError(w, errorStatus(err), "setup failed")
		return
	}
	s.logger.Info("ranges set up", "created", res.Created, "existing", res.Existing, "by", principalFrom(r.Context()))
	writeJSON(w, http.StatusOK, res)
}
