package otp

import (
	"context"
	"time"

	"github.com/go-phone-auth/internal/application/session"
	"github.com/go-phone-auth/internal/domain"
)

// Store is the shared TTL-aware key-value store holding all OTP state. Each
// call is atomic on its own; sequences of calls are not. Get returns
// domain.ErrNotFound for absent keys. Timeouts are the implementation's job.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NotificationSender delivers the code. Failures should be *notify.Error so
// they can be classified; anything else is reported as an unknown failure.
type NotificationSender interface {
	SendSMS(ctx context.Context, to, body string) (receiptID string, err error)
}

// UserDirectory finds or creates the user owning a verified phone. FindByPhone
// returns domain.ErrNotFound when no user has the number and Create returns
// domain.ErrConflict when the number is already taken.
type UserDirectory interface {
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateVerification(ctx context.Context, userID string, verified bool) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, u *domain.User) (*session.TokenPair, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

func otpKey(phone string) string       { return "otp:" + phone }
func cooldownKey(phone string) string  { return "cooldown:" + phone }
func attemptsKey(phone string) string  { return "attempts:" + phone }
func rateLimitKey(phone string) string { return "rate_limit:" + phone }
