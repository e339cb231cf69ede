package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-phone-auth/internal/domain"
	"github.com/go-phone-auth/internal/pkg/phone"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	// AttachPhone puts an unverified phone number on an existing account so
	// it can then be confirmed through the OTP flow.
	AttachPhone(ctx context.Context, userID string, req domain.AttachPhoneRequest) (*domain.User, error)
}

type userStore interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	AttachPhone(ctx context.Context, u *domain.User, phone string) error
}

type service struct {
	repo userStore
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (s *service) AttachPhone(ctx context.Context, userID string, req domain.AttachPhoneRequest) (*domain.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PhoneVerified {
		return nil, fmt.Errorf("phone number already verified: %w", domain.ErrBadRequest)
	}

	num := phone.Normalize(req.PhoneNumber)
	owner, err := s.repo.FindByPhone(ctx, num)
	switch {
	case err == nil && owner.UserID != u.UserID:
		return nil, fmt.Errorf("phone number already in use: %w", domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if err := s.repo.AttachPhone(ctx, u, num); err != nil {
		return nil, err
	}
	u.Phone = &num
	u.PhoneVerified = false
	u.UpdatedAt = time.Now().UTC()
	slog.Info("phone attached", "user_id", u.UserID, "phone", num)
	return u, nil
}
