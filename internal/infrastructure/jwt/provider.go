package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-phone-auth/internal/config"
	"github.com/go-phone-auth/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "typ" claim so a refresh token is never accepted
// where an access token is expected, and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims holds the JWT payload fields. Subject is the user ID.
type Claims struct {
	Email         *string `json:"email"`
	PhoneNumber   *string `json:"phone_number"`
	PhoneVerified bool    `json:"is_phone_verified"`
	Type          string  `json:"typ"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{privateKey: privKey, publicKey: pubKey, issuer: cfg.JWTIssuer}, nil
}

// NewProviderFromKey builds a Provider from an in-memory key pair.
func NewProviderFromKey(key *rsa.PrivateKey, issuer string) *Provider {
	return &Provider{privateKey: key, publicKey: &key.PublicKey, issuer: issuer}
}

// Sign stamps the registered claims (issuer, jti, iat, exp) and signs c.
func (p *Provider) Sign(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.RegisteredClaims.Issuer = p.issuer
	c.RegisteredClaims.ID = id.New()
	c.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	c.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
