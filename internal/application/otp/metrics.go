package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sendTotal counts send/resend outcomes.
	sendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_send_total",
		Help: "Total number of OTP send and resend requests by outcome",
	}, []string{"op", "outcome"})

	// verifyTotal counts verification outcomes.
	verifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verify_total",
		Help: "Total number of OTP verification requests by outcome",
	}, []string{"outcome"})
)

const (
	outcomeSent           = "sent"
	outcomeCooldown       = "cooldown"
	outcomeRateLimited    = "rate_limited"
	outcomeDeliveryFailed = "delivery_failed"
	outcomeError          = "error"

	outcomeVerified  = "verified"
	outcomeExhausted = "exhausted"
	outcomeExpired   = "expired"
	outcomeInvalid   = "invalid"
)
