package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-phone-auth/internal/config"
	"github.com/go-phone-auth/internal/domain"
	"github.com/go-phone-auth/internal/pkg/id"
	"github.com/go-phone-auth/internal/pkg/notify"
	"github.com/go-phone-auth/internal/pkg/phone"
)

const (
	opSend   = "send"
	opResend = "resend"
	opVerify = "verify"
)

// ReasonCooldown is the SendResult reason for a send rejected by the cooldown.
const ReasonCooldown = "cooldown"

type SendResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Reason          string `json:"reason,omitempty"`
	NormalizedPhone string `json:"normalized_phone,omitempty"`
	// RemainingSends is the quota left in the current window after a
	// successful send. Nil on soft failures.
	RemainingSends *int `json:"remaining_sends,omitempty"`
}

type VerifyResult struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// Service drives the per-phone OTP state machine.
//
// Send and Resend share one pipeline but answer differently on purpose. Send
// reports the normalized number so the client can echo it into Verify, and
// treats the cooldown as a soft failure. Resend is only called by a client
// that already holds the normalized number, so it omits it and rejects a
// cooldown with ErrCooldownActive.
type Service interface {
	// Send issues a new code. A send during the cooldown window is a soft
	// failure: Success is false and the error is nil.
	Send(ctx context.Context, phoneNumber string) (*SendResult, error)
	// Resend is Send with an ErrCooldownActive error instead of the soft failure.
	Resend(ctx context.Context, phoneNumber string) (*SendResult, error)
	// Verify consumes the pending code and returns the user with a fresh token pair.
	Verify(ctx context.Context, phoneNumber, code string) (*VerifyResult, error)
	// State reports whether a code is pending, exhausted or absent.
	State(ctx context.Context, phoneNumber string) (State, error)
}

type service struct {
	store   Store
	limiter *RateLimiter
	gen     codeGenerator
	sender  NotificationSender
	users   UserDirectory
	tokens  TokenIssuer
	cfg     config.OTP
}

type ServiceDeps struct {
	Store     Store
	Sender    NotificationSender
	Users     UserDirectory
	Tokens    TokenIssuer
	Generator codeGenerator // defaults to NewGenerator(Config.Length)
	Config    config.OTP
}

func NewService(deps ServiceDeps) Service {
	gen := deps.Generator
	if gen == nil {
		gen = NewGenerator(deps.Config.Length)
	}
	return &service{
		store:   deps.Store,
		limiter: NewRateLimiter(deps.Store, deps.Config),
		gen:     gen,
		sender:  deps.Sender,
		users:   deps.Users,
		tokens:  deps.Tokens,
		cfg:     deps.Config,
	}
}

func (s *service) Send(ctx context.Context, phoneNumber string) (*SendResult, error) {
	return s.dispatch(ctx, opSend, phoneNumber)
}

func (s *service) Resend(ctx context.Context, phoneNumber string) (*SendResult, error) {
	return s.dispatch(ctx, opResend, phoneNumber)
}

// dispatch runs cooldown gate, quota gate, code storage and delivery. The
// cooldown is checked first so a blocked request does not consume quota.
func (s *service) dispatch(ctx context.Context, op, raw string) (*SendResult, error) {
	num := phone.Normalize(raw)

	blocked, err := s.limiter.InCooldown(ctx, num)
	if err != nil {
		return nil, s.fail(op, num, "check cooldown", err)
	}
	if blocked {
		sendTotal.WithLabelValues(op, outcomeCooldown).Inc()
		if op == opResend {
			return nil, ErrCooldownActive
		}
		return &SendResult{Success: false, Message: "Too many requests. Please try again later.", Reason: ReasonCooldown}, nil
	}

	if err := s.limiter.CheckQuota(ctx, num); err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			sendTotal.WithLabelValues(op, outcomeRateLimited).Inc()
			slog.Info("otp quota exceeded", "op", op, "phone", num)
			return nil, err
		}
		return nil, s.fail(op, num, "check quota", err)
	}
	remaining, err := s.limiter.Remaining(ctx, num)
	if err != nil {
		return nil, s.fail(op, num, "read quota", err)
	}

	code, err := s.gen.Generate()
	if err != nil {
		return nil, s.fail(op, num, "generate code", err)
	}
	if err := s.store.Set(ctx, otpKey(num), code, s.cfg.TTL); err != nil {
		return nil, s.fail(op, num, "store code", err)
	}
	if err := s.limiter.StartCooldown(ctx, num); err != nil {
		return nil, s.fail(op, num, "start cooldown", err)
	}
	if err := s.store.Del(ctx, attemptsKey(num)); err != nil {
		return nil, s.fail(op, num, "reset attempts", err)
	}

	// The stored code and cooldown stay in place when delivery fails; the
	// user may resend once the cooldown lapses.
	receipt, err := s.sender.SendSMS(ctx, num, s.message(code))
	if err != nil {
		reason := notify.Classify(err)
		sendTotal.WithLabelValues(op, outcomeDeliveryFailed).Inc()
		slog.Warn("otp delivery failed", "op", op, "phone", num, "reason", reason, "err", err)
		return nil, &DeliveryError{Reason: reason}
	}

	sendTotal.WithLabelValues(op, outcomeSent).Inc()
	if s.cfg.LogCodes {
		slog.Debug("otp code issued", "phone", num, "code", code)
	}
	slog.Info("otp sent", "op", op, "phone", num, "receipt", receipt)

	if op == opResend {
		return &SendResult{Success: true, Message: "OTP resent successfully", RemainingSends: &remaining}, nil
	}
	return &SendResult{Success: true, Message: "OTP sent successfully", NormalizedPhone: num, RemainingSends: &remaining}, nil
}

func (s *service) Verify(ctx context.Context, phoneNumber, code string) (*VerifyResult, error) {
	num := phone.Normalize(phoneNumber)

	snap, err := s.load(ctx, num)
	if err != nil {
		verifyTotal.WithLabelValues(outcomeError).Inc()
		return nil, s.fail(opVerify, num, "load state", err)
	}
	switch snap.state {
	case StateExhausted:
		verifyTotal.WithLabelValues(outcomeExhausted).Inc()
		return nil, ErrAttemptsExhausted
	case StateNoOtp:
		verifyTotal.WithLabelValues(outcomeExpired).Inc()
		return nil, ErrOtpExpiredOrMissing
	}

	if snap.code != code {
		if err := s.recordFailure(ctx, num); err != nil {
			verifyTotal.WithLabelValues(outcomeError).Inc()
			return nil, s.fail(opVerify, num, "record failed attempt", err)
		}
		verifyTotal.WithLabelValues(outcomeInvalid).Inc()
		slog.Info("otp mismatch", "phone", num, "attempt", snap.attempts+1)
		return nil, ErrInvalidOtp
	}

	// Commit point: once both keys are gone a replay of the same code sees
	// StateNoOtp. Two concurrent correct submissions can both pass the
	// comparison above before either delete lands; both then succeed.
	if err := s.store.Del(ctx, otpKey(num), attemptsKey(num)); err != nil {
		verifyTotal.WithLabelValues(outcomeError).Inc()
		return nil, s.fail(opVerify, num, "consume code", err)
	}

	u, err := s.resolveUser(ctx, num)
	if err != nil {
		verifyTotal.WithLabelValues(outcomeError).Inc()
		return nil, s.fail(opVerify, num, "resolve user", err)
	}
	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		verifyTotal.WithLabelValues(outcomeError).Inc()
		return nil, s.fail(opVerify, num, "issue tokens", err)
	}

	verifyTotal.WithLabelValues(outcomeVerified).Inc()
	slog.Info("user authenticated via phone", "phone", num, "user_id", u.UserID)
	return &VerifyResult{User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *service) State(ctx context.Context, phoneNumber string) (State, error) {
	snap, err := s.load(ctx, phone.Normalize(phoneNumber))
	if err != nil {
		return StateNoOtp, err
	}
	return snap.state, nil
}

// recordFailure bumps the attempt counter and stretches its TTL so the
// exhaustion window tracks the code's lifetime.
func (s *service) recordFailure(ctx context.Context, num string) error {
	key := attemptsKey(num)
	if _, err := s.store.Incr(ctx, key); err != nil {
		return err
	}
	return s.store.Expire(ctx, key, s.cfg.TTL)
}

func (s *service) resolveUser(ctx context.Context, num string) (*domain.User, error) {
	u, err := s.users.FindByPhone(ctx, num)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.createUser(ctx, num)
	case err != nil:
		return nil, err
	case !u.PhoneVerified:
		if err := s.users.UpdateVerification(ctx, u.UserID, true); err != nil {
			return nil, err
		}
		u.PhoneVerified = true
	}
	return u, nil
}

func (s *service) createUser(ctx context.Context, num string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UserID:        id.New(),
		Phone:         &num,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.users.Create(ctx, u)
	if errors.Is(err, domain.ErrConflict) {
		// A concurrent verification created the user first.
		return s.users.FindByPhone(ctx, num)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("user created", "phone", num, "user_id", u.UserID)
	return u, nil
}

func (s *service) message(code string) string {
	minutes := int(s.cfg.TTL / time.Minute)
	return strings.NewReplacer("{code}", code, "{minutes}", strconv.Itoa(minutes)).Replace(s.cfg.MessageTemplate)
}

// fail logs an infrastructure error once with its context and wraps it. The
// transport hides the wrapped detail from clients.
func (s *service) fail(op, num, step string, err error) error {
	if op != opVerify {
		sendTotal.WithLabelValues(op, outcomeError).Inc()
	}
	slog.Error("otp operation failed", "op", op, "phone", num, "step", step, "err", err)
	return fmt.Errorf("otp %s: %s: %w", op, step, err)
}
