package handler

import (
	"net/http"

	"github.com/go-phone-auth/internal/application/user"
	"github.com/go-phone-auth/internal/domain"
	"github.com/go-phone-auth/internal/transport/http/middleware"
)

// UserHandler handles endpoints for the authenticated user.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Get(r.Context(), claims.Subject)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}

func (h *UserHandler) AttachPhone(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.AttachPhoneRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.AttachPhone(r.Context(), claims.Subject, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}
