package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-phone-auth/internal/application/otp"
	"github.com/go-phone-auth/internal/application/session"
	"github.com/go-phone-auth/internal/application/user"
	"github.com/go-phone-auth/internal/config"
	jwtinfra "github.com/go-phone-auth/internal/infrastructure/jwt"
	"github.com/go-phone-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-phone-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	Store       KVStore
	SMSSender   otp.NotificationSender
	JWTProvider *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:        deps.UserRepo,
		JWTProvider:     deps.JWTProvider,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:  deps.Store,
		Sender: deps.SMSSender,
		Users:  deps.UserRepo,
		Tokens: sessionSvc,
		Config: cfg.OTP,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo})

	healthH := handler.NewHealthHandler(deps.Store)
	otpH := handler.NewOTPHandler(otpSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)

	// Per-IP throttles on the public auth endpoints, per minute.
	ips := appmiddleware.NewIPResolver(cfg.TrustedProxies)
	sendRL := appmiddleware.PerMinute(3, ips)
	resendRL := appmiddleware.PerMinute(2, ips)
	verifyRL := appmiddleware.PerMinute(5, ips)
	statusRL := appmiddleware.PerMinute(10, ips)
	refreshRL := appmiddleware.PerMinute(5, ips)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sendRL.Limit).Post("/auth/phone/send-otp", otpH.Send)
		r.With(resendRL.Limit).Post("/auth/phone/resend-otp", otpH.Resend)
		r.With(verifyRL.Limit).Post("/auth/phone/verify-otp", otpH.Verify)
		r.With(statusRL.Limit).Post("/auth/phone/otp-status", otpH.Status)
		r.With(refreshRL.Limit).Post("/auth/refresh", sessionH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(sessionSvc))

			r.Get("/users/me", userH.Me)
			r.Post("/users/me/phone", userH.AttachPhone)
		})
	})

	return r
}
