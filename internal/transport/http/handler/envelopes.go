package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-phone-auth/internal/application/otp"
	"github.com/go-phone-auth/internal/domain"
	"github.com/go-phone-auth/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// AuthEnvelope wraps successful verification responses.
type AuthEnvelope struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// TokenEnvelope wraps refresh responses.
type TokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// StatusEnvelope wraps OTP state responses.
type StatusEnvelope struct {
	State string `json:"state"`
}

type UserEnvelope struct {
	User *domain.User `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body into dst and runs its validate tags. On failure it
// writes the 400 response itself and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

var sentinels = []error{
	domain.ErrNotFound, domain.ErrConflict, domain.ErrUnauthorized,
	domain.ErrForbidden, domain.ErrBadRequest, domain.ErrTooManyRequests,
}

// httpError maps a service error to a status code. Errors that wrap no
// domain sentinel are infrastructure failures and are reported generically.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var de *otp.DeliveryError
	if errors.As(err, &de) {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: de.Reason.Message(), Reason: string(de.Reason)})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTooManyRequests):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "operation failed, try again")
		return
	}
	writeError(w, status, publicMessage(err))
}

// publicMessage drops the trailing domain sentinel text from err.
func publicMessage(err error) string {
	msg := err.Error()
	for _, s := range sentinels {
		msg = strings.TrimSuffix(msg, ": "+s.Error())
	}
	return msg
}
