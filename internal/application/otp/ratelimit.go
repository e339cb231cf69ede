package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-phone-auth/internal/config"
	"github.com/go-phone-auth/internal/domain"
)

// RateLimiter enforces the post-send cooldown and the hourly send quota for a
// normalized phone number.
type RateLimiter struct {
	store    Store
	cooldown time.Duration
	window   time.Duration
	max      int
}

func NewRateLimiter(store Store, cfg config.OTP) *RateLimiter {
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Hour
	}
	return &RateLimiter{store: store, cooldown: cfg.CooldownTTL, window: window, max: cfg.MaxOtpRequestsPerHour}
}

// InCooldown reports whether a send happened within the cooldown window.
func (l *RateLimiter) InCooldown(ctx context.Context, phone string) (bool, error) {
	return l.store.Exists(ctx, cooldownKey(phone))
}

func (l *RateLimiter) StartCooldown(ctx context.Context, phone string) error {
	return l.store.Set(ctx, cooldownKey(phone), "1", l.cooldown)
}

// CheckQuota consumes one slot of the hourly quota. The increment is never
// rolled back, so a rejected request still counts against the window.
func (l *RateLimiter) CheckQuota(ctx context.Context, phone string) error {
	key := rateLimitKey(phone)
	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return err
	}
	if n == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			return err
		}
	}
	if n > int64(l.max) {
		return fmt.Errorf("maximum %d requests per hour allowed: %w", l.max, ErrRateLimitExceeded)
	}
	return nil
}

// Remaining reports how many sends are left in the current window.
func (l *RateLimiter) Remaining(ctx context.Context, phone string) (int, error) {
	v, err := l.store.Get(ctx, rateLimitKey(phone))
	if errors.Is(err, domain.ErrNotFound) {
		return l.max, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := parseCount(v)
	if err != nil {
		return 0, err
	}
	return max(l.max-n, 0), nil
}
