package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-phone-auth/internal/domain"
	jwtinfra "github.com/go-phone-auth/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidRefreshToken is returned when a refresh token fails signature,
// expiry or type checks.
var ErrInvalidRefreshToken = fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)

// ErrInvalidAccessToken is returned by Validate.
var ErrInvalidAccessToken = fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Service interface {
	// Issue mints an access/refresh pair for u and stores the refresh token on
	// the user record.
	Issue(ctx context.Context, u *domain.User) (*TokenPair, error)
	// Refresh rotates a pair. It returns (nil, nil) when the token is valid but
	// no longer the one stored for the user; callers treat that as an
	// authentication failure.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Validate(accessToken string) (*jwtinfra.Claims, error)
}

type userStore interface {
	FindByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateRefreshToken(ctx context.Context, userID, token string) error
}

type tokenSigner interface {
	Sign(c jwtinfra.Claims, ttl time.Duration) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type service struct {
	users      userStore
	signer     tokenSigner
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type ServiceDeps struct {
	UserRepo        userStore
	JWTProvider     tokenSigner
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:      deps.UserRepo,
		signer:     deps.JWTProvider,
		accessTTL:  deps.AccessTokenTTL,
		refreshTTL: deps.RefreshTokenTTL,
	}
}

func (s *service) Issue(ctx context.Context, u *domain.User) (*TokenPair, error) {
	base := claimsFor(u)

	access := base
	access.Type = jwtinfra.TypeAccess
	accessToken, err := s.signer.Sign(access, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := base
	refresh.Type = jwtinfra.TypeRefresh
	refreshToken, err := s.signer.Sign(refresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, u.UserID, refreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	u.RefreshToken = &refreshToken
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.signer.Verify(refreshToken)
	if err != nil || claims.Type != jwtinfra.TypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	u, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(refreshToken)) != 1 {
		slog.Warn("refresh token superseded", "user_id", u.UserID)
		return nil, nil
	}
	return s.Issue(ctx, u)
}

func (s *service) Validate(accessToken string) (*jwtinfra.Claims, error) {
	claims, err := s.signer.Verify(accessToken)
	if err != nil || claims.Type != jwtinfra.TypeAccess {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

func claimsFor(u *domain.User) jwtinfra.Claims {
	return jwtinfra.Claims{
		Email:            u.Email,
		PhoneNumber:      u.Phone,
		PhoneVerified:    u.PhoneVerified,
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.UserID},
	}
}
