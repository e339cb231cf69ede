package handler

import (
	"net/http"

	"github.com/go-phone-auth/internal/application/session"
	"github.com/go-phone-auth/internal/domain"
)

// SessionHandler handles token refresh.
type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpError(w, r, err)
		return
	}
	if pair == nil {
		// Signature was fine but the token has been rotated out.
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}
