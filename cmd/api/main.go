package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-phone-auth/internal/config"
	"github.com/go-phone-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-phone-auth/internal/infrastructure/jwt"
	redisinfra "github.com/go-phone-auth/internal/infrastructure/redis"
	"github.com/go-phone-auth/internal/infrastructure/sns"
	transporthttp "github.com/go-phone-auth/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg *config.Config) error {
	ctx := context.Background()
	if cfg.OTP.LogCodes && cfg.IsProduction() {
		slog.Warn("LOG_OTP_CODES is ignored in production")
		cfg.OTP.LogCodes = false
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	snsClient, err := sns.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("sns client: %w", err)
	}

	var store transporthttp.KVStore
	switch cfg.KVBackend {
	case "dynamo":
		store = dynamo.NewKVStore(dynamoClient, cfg.DynamoTables.OTPState)
	case "redis":
		client := redisinfra.NewClient(cfg)
		defer client.Close()
		store = redisinfra.NewStore(client)
	default:
		return fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
	if err := store.Ping(ctx); err != nil {
		slog.Warn("OTP store not reachable at startup", "backend", cfg.KVBackend, "err", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		Store:       store,
		SMSSender:   sns.NewSender(snsClient, cfg.SMSSenderID, cfg.SMSTimeout),
		JWTProvider: jwtProvider,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "kv_backend", cfg.KVBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
