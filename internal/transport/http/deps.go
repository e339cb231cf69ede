package http

import (
	"context"

	"github.com/go-phone-auth/internal/application/otp"
	"github.com/go-phone-auth/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateVerification(ctx context.Context, userID string, verified bool) error
	UpdateRefreshToken(ctx context.Context, userID, token string) error
	AttachPhone(ctx context.Context, u *domain.User, phone string) error
}

// KVStore is the OTP state store plus the ping used by the readiness check.
type KVStore interface {
	otp.Store
	Ping(ctx context.Context) error
}
