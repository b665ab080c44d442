package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"smartexpense/internal/amqp"
	"smartexpense/internal/auth"
	"smartexpense/internal/cache"
	"smartexpense/internal/cli"
	apphttp "smartexpense/internal/http"
	applog "smartexpense/internal/log"
	"smartexpense/internal/middleware/security"
	"smartexpense/internal/services"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)

	// Amounts travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.Cleanup(logger, "backend", result.Cleanup)

	overviews := cache.NewLRUCache[services.Overview](cfg.CacheSize, cfg.CacheTTL)
	caches := cache.NewManager()
	caches.Register(overviews)
	caches.StartCleanup(cfg.CacheCleanupInterval)
	defer caches.Stop()

	opts := []services.Option{services.WithOverviewCache(overviews)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer cli.Cleanup(logger, "amqp", client.Close)
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	httpCfg := apphttp.DefaultConfig()
	httpCfg.Addr = cfg.Addr()
	httpCfg.CORSOrigins = cfg.CORSOrigins
	httpCfg.TrustedProxies = cfg.TrustedProxies
	httpCfg.AuthRequestsPerMinute = cfg.AuthRateLimit
	httpCfg.Headers = security.DefaultHeadersConfig()

	srv, err := apphttp.NewServer(httpCfg, apphttp.Deps{
		Auth:          auth.NewService(result.Store, auth.WithCost(cfg.BcryptCost)),
		Expenses:      services.NewExpenseService(result.Store, opts...),
		Budgets:       services.NewBudgetService(result.Store, opts...),
		Dashboard:     services.NewDashboardService(result.Store, opts...),
		Store:         result.Store,
		OverviewCache: overviews,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting smartexpense server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
