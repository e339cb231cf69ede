// Package notify defines the fixed set of reasons an outbound SMS can fail
// with, so vendor error codes never leak past the sender adapter.
package notify

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonInvalidPhoneFormat    Reason = "invalid_phone_format"
	ReasonNotMobileNumber       Reason = "not_mobile_number"
	ReasonPermissionDenied      Reason = "permission_denied"
	ReasonUnverifiedTrialNumber Reason = "unverified_trial_number"
	ReasonUnknown               Reason = "delivery_failed"
)

// Message is the user-facing text for a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidPhoneFormat:
		return "Invalid phone number format"
	case ReasonNotMobileNumber:
		return "Phone number is not a valid mobile number"
	case ReasonPermissionDenied:
		return "Permission to send SMS to this number is denied"
	case ReasonUnverifiedTrialNumber:
		return "Phone number is not verified (trial account)"
	default:
		return "SMS delivery failed"
	}
}

// Error is a classified delivery failure. Detail holds the vendor message for
// logs; it is not part of Error().
type Error struct {
	Reason Reason
	Code   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sms delivery failed: %s", e.Reason)
}

// Classify extracts the Reason from err. Unclassified errors yield ReasonUnknown.
func Classify(err error) Reason {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Reason
	}
	return ReasonUnknown
}
