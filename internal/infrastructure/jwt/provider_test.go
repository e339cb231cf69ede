package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-phone-auth/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestNewProvider_FromPEMFiles(t *testing.T) {
	key := newKey(t)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := NewProvider(&config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTIssuer: "test"})
	require.NoError(t, err)

	tok, err := p.Sign(Claims{Type: TypeAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Minute)
	require.NoError(t, err)
	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
}

func TestNewProvider_MissingKeyFile(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.ErrorContains(t, err, "read private key")
}

func TestSign_RoundTripClaims(t *testing.T) {
	p := NewProviderFromKey(newKey(t), "test")
	email := "a@b.com"
	phone := "+15551234567"

	tok, err := p.Sign(Claims{
		Email:            &email,
		PhoneNumber:      &phone,
		PhoneVerified:    true,
		Type:             TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}, time.Hour)
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, &email, claims.Email)
	assert.Equal(t, &phone, claims.PhoneNumber)
	assert.True(t, claims.PhoneVerified)
	assert.Equal(t, TypeRefresh, claims.Type)
	assert.Equal(t, "test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestSign_UniqueTokenIDs(t *testing.T) {
	p := NewProviderFromKey(newKey(t), "test")
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	a, err := p.Sign(c, time.Hour)
	require.NoError(t, err)
	b, err := p.Sign(c, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_Expired(t *testing.T) {
	p := NewProviderFromKey(newKey(t), "test")
	tok, err := p.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, -time.Minute)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_WrongKey(t *testing.T) {
	signer := NewProviderFromKey(newKey(t), "test")
	verifier := NewProviderFromKey(newKey(t), "test")
	tok, err := signer.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_WrongIssuer(t *testing.T) {
	key := newKey(t)
	tok, err := NewProviderFromKey(key, "other").Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, time.Hour)
	require.NoError(t, err)

	_, err = NewProviderFromKey(key, "test").Verify(tok)
	assert.Error(t, err)
}
