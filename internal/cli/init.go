// Package cli holds the start-up steps shared by the commands under cmd/.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"smartexpense/internal/backend"
	"smartexpense/internal/config"
	applog "smartexpense/internal/log"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap loads .env and the configuration, installs the process logger
// and validates. It exits the process when the configuration is invalid.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := applog.Setup(cfg.LogFormat, cfg.LogLevel).WithComponent(component)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the configured store or exits the process.
func OpenBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	result, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return result
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend.BackendResult, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Cleanup runs fn and logs its error, for use in defer.
func Cleanup(logger *applog.Logger, what string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Error("Cleanup failed", "resource", what, "error", err)
	}
}
