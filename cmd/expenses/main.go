package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"time"

	"expensegroups/internal/auth"
	"expensegroups/internal/backend"
	"expensegroups/internal/cache"
	"expensegroups/internal/cli"
	apphttp "expensegroups/internal/http"
	"expensegroups/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	secret := cfg.SessionSecret
	if secret == "" {
		secret = ephemeralSecret()
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}
	sessions := auth.NewService(
		auth.NewPasswordAuthenticator(result.Store),
		auth.NewJWTManager(secret, cfg.SessionTTL),
		logger)

	accounts := services.NewAccountService(sessions, result.Store, logger)
	groups := services.NewGroupService(result.Store, result.Store, logger)
	groups.OnUserChanged(accounts.InvalidateProfile)
	expenses := services.NewExpenseService(result.Store, result.Store, result.Publisher, logger)

	caches := cache.NewManager(logger)
	caches.Register(sessions.RevokedTokens())
	caches.Register(accounts.Profiles())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts: accounts,
		Expenses: expenses,
		Groups:   groups,
		Sessions: sessions,
		Ready:    result.Ready,
		Logger:   logger,
	}, apphttp.Options{
		CookieSecure:       cfg.CookieSecure,
		SessionTTL:         cfg.SessionTTL,
		Location:           cfg.Location(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting expenses server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", result.Publisher != nil,
			"timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}

// ephemeralSecret returns a random signing key for processes started
// without SESSION_SECRET.
func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
