package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-phone-auth/internal/domain"
)

// State is the verification state of a phone number, derived from which keys
// are present in the store.
type State int

const (
	// StateNoOtp: no live code (never sent, expired, or consumed).
	StateNoOtp State = iota
	// StatePending: a live code is waiting for verification.
	StatePending
	// StateExhausted: too many wrong codes; only a new send leaves this state.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExhausted:
		return "exhausted"
	default:
		return "no_otp"
	}
}

type snapshot struct {
	state    State
	attempts int
	code     string
}

// load reads the attempt counter before the code, so an exhausted phone is
// reported as exhausted whether or not its code has also expired.
func (s *service) load(ctx context.Context, phone string) (snapshot, error) {
	attempts, err := s.attempts(ctx, phone)
	if err != nil {
		return snapshot{}, err
	}
	if attempts >= s.cfg.MaxAttempts {
		return snapshot{state: StateExhausted, attempts: attempts}, nil
	}
	code, err := s.store.Get(ctx, otpKey(phone))
	if errors.Is(err, domain.ErrNotFound) {
		return snapshot{state: StateNoOtp, attempts: attempts}, nil
	}
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{state: StatePending, attempts: attempts, code: code}, nil
}

func (s *service) attempts(ctx context.Context, phone string) (int, error) {
	v, err := s.store.Get(ctx, attemptsKey(phone))
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseCount(v)
}

func parseCount(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %q: %w", v, err)
	}
	return n, nil
}
