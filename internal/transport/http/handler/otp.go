package handler

import (
	"net/http"

	"github.com/go-phone-auth/internal/application/otp"
	"github.com/go-phone-auth/internal/domain"
)

// OTPHandler handles the phone sign-in endpoints.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

// Send answers 200 for the cooldown soft failure too; the body carries
// success=false and reason=cooldown.
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.PhoneRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Send(r.Context(), req.PhoneNumber)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req domain.PhoneRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Resend(r.Context(), req.PhoneNumber)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Verify(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: res.User, AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// Status reports the OTP state for a number without consuming anything.
func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req domain.PhoneRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.svc.State(r.Context(), req.PhoneNumber)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusEnvelope{State: st.String()})
}
