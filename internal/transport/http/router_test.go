package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-phone-auth/internal/config"
	"github.com/go-phone-auth/internal/domain"
	jwtinfra "github.com/go-phone-auth/internal/infrastructure/jwt"
	redisinfra "github.com/go-phone-auth/internal/infrastructure/redis"
	"github.com/go-phone-auth/internal/transport/http/handler"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (m *memUsers) FindByID(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneValue() == phone {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
	return nil
}

func (m *memUsers) UpdateVerification(_ context.Context, userID string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].PhoneVerified = verified
	return nil
}

func (m *memUsers) UpdateRefreshToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].RefreshToken = &token
	return nil
}

func (m *memUsers) AttachPhone(_ context.Context, u *domain.User, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID].Phone = &phone
	return nil
}

type recordingSender struct {
	mu     sync.Mutex
	bodies []string
}

func (s *recordingSender) SendSMS(_ context.Context, _, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	return "msg", nil
}

type testServer struct {
	h      http.Handler
	mr     *miniredis.Miniredis
	sender *recordingSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := &config.Config{
		AllowedOrigins:  []string{"*"},
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		OTP:             config.DefaultOTP(),
	}
	sender := &recordingSender{}
	h := NewRouter(cfg, &Deps{
		UserRepo:    &memUsers{users: make(map[string]*domain.User)},
		Store:       redisinfra.NewStore(client),
		SMSSender:   sender,
		JWTProvider: jwtinfra.NewProviderFromKey(key, "test"),
	})
	return &testServer{h: h, mr: mr, sender: sender}
}

func jsonBody(t *testing.T, body interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return &buf
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, jsonBody(t, body))
	req.RemoteAddr = "192.0.2.10:4000"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PhoneSignInFlow(t *testing.T) {
	s := newTestServer(t)
	const phone = "+15551234567"

	rr := s.do(t, http.MethodPost, "/v1/auth/phone/send-otp", "", map[string]string{"phone_number": "+1 555-123-4567"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"OTP sent successfully","normalized_phone":"+15551234567","remaining_sends":4}`, rr.Body.String())

	code, err := s.mr.Get("otp:" + phone)
	require.NoError(t, err)
	require.Len(t, s.sender.bodies, 1)
	assert.Contains(t, s.sender.bodies[0], code)

	rr = s.do(t, http.MethodPost, "/v1/auth/phone/otp-status", "", map[string]string{"phone_number": phone})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"state":"pending"}`, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/v1/auth/phone/verify-otp", "", map[string]string{"phone_number": phone, "otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, rr.Code) // generated codes never start with 0

	rr = s.do(t, http.MethodPost, "/v1/auth/phone/verify-otp", "", map[string]string{"phone_number": phone, "otp": code})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var auth handler.AuthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&auth))
	assert.True(t, auth.User.PhoneVerified)
	assert.Equal(t, phone, auth.User.PhoneValue())

	rr = s.do(t, http.MethodPost, "/v1/auth/phone/otp-status", "", map[string]string{"phone_number": phone})
	assert.JSONEq(t, `{"state":"no_otp"}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/v1/users/me", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me handler.UserEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&me))
	assert.Equal(t, auth.User.UserID, me.User.UserID)

	rr = s.do(t, http.MethodGet, "/v1/users/me", auth.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	var pair handler.TokenEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&pair))
	assert.NotEqual(t, auth.RefreshToken, pair.RefreshToken)

	rr = s.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_CooldownResponses(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"phone_number": "+15551234567"}

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/auth/phone/send-otp", "", body).Code)

	rr := s.do(t, http.MethodPost, "/v1/auth/phone/send-otp", "", body)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)

	rr = s.do(t, http.MethodPost, "/v1/auth/phone/resend-otp", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_PerIPThrottle(t *testing.T) {
	s := newTestServer(t)
	var last int
	for i := 0; i < 4; i++ {
		body := map[string]string{"phone_number": "+1555000000" + string(rune('0'+i))}
		last = s.do(t, http.MethodPost, "/v1/auth/phone/send-otp", "", body).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRouter_SpoofedForwardedForIsIgnored(t *testing.T) {
	s := newTestServer(t)
	var last int
	for i := 0; i < 4; i++ {
		body := map[string]string{"phone_number": "+1555000000" + string(rune('0'+i))}
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/phone/send-otp", jsonBody(t, body))
		req.RemoteAddr = "192.0.2.10:4000"
		req.Header.Set("X-Forwarded-For", "198.51.100."+string(rune('0'+i)))
		rr := httptest.NewRecorder()
		s.h.ServeHTTP(rr, req)
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/health-check/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/health-check/ready", "", nil).Code)

	s.mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/v1/health-check/ready", "", nil).Code)

	rr := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/users/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/users/me/phone", "", map[string]string{"phone_number": "+15551234567"}).Code)
}
