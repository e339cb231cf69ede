package otp

import (
	"fmt"

	"github.com/go-phone-auth/internal/domain"
	"github.com/go-phone-auth/internal/pkg/notify"
)

// User-facing outcomes. Each wraps a domain sentinel so the transport can map
// it to a status code with errors.Is.
var (
	ErrCooldownActive      = fmt.Errorf("too many requests, please try again later: %w", domain.ErrTooManyRequests)
	ErrRateLimitExceeded   = fmt.Errorf("too many OTP requests: %w", domain.ErrTooManyRequests)
	ErrAttemptsExhausted   = fmt.Errorf("too many failed attempts, please request a new OTP: %w", domain.ErrBadRequest)
	ErrOtpExpiredOrMissing = fmt.Errorf("OTP expired or not found, please request a new one: %w", domain.ErrBadRequest)
	ErrInvalidOtp          = fmt.Errorf("invalid OTP, please try again: %w", domain.ErrBadRequest)
	ErrDeliveryFailed      = fmt.Errorf("failed to send OTP: %w", domain.ErrBadRequest)
)

// DeliveryError reports a failed SMS with a reason from a fixed set.
type DeliveryError struct {
	Reason notify.Reason
}

func (e *DeliveryError) Error() string { return e.Reason.Message() }

func (e *DeliveryError) Unwrap() error { return ErrDeliveryFailed }
