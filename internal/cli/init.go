// Package cli provides common initialization used by cmd/durood and
// cmd/duroodctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"durood/internal/backend"
	"durood/internal/config"
	"durood/internal/log"
	"durood/internal/metrics"
	"durood/internal/services"
	"durood/internal/tally"
)

// SetupLogger builds a stdout text logger for level and installs it as the
// default. Unknown levels fall back to info.
func SetupLogger(level string) *log.Logger {
	return SetupLoggerTo(os.Stdout, level)
}

// SetupLoggerTo is SetupLogger writing to w.
func SetupLoggerTo(w io.Writer, level string) *log.Logger {
	logger, err := log.NewText(w, level)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Counter bundles an opened counter service with its persistence backend.
type Counter struct {
	Service *services.CounterService
	Backend backend.Backend
	cleanup backend.CleanupFunc
}

// Close flushes the counter, then releases the backend.
func (c *Counter) Close(ctx context.Context) error {
	return c.close(c.Service.Close(ctx))
}

// Release frees the backend without flushing the counter.
func (c *Counter) Release() error {
	return c.close(c.Service.Release())
}

func (c *Counter) close(svcErr error) error {
	var errs []error
	if svcErr != nil {
		errs = append(errs, svcErr)
	}
	if c.cleanup != nil {
		if err := c.cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("backend: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close counter: %v", errs)
	}
	return nil
}

// OpenCounter creates the configured backend and opens the counter on it.
// publisher and m may be nil.
func OpenCounter(ctx context.Context, logger *slog.Logger, cfg *config.Config, publisher services.EventPublisher, m *metrics.Metrics) (*Counter, error) {
	policy, err := cfg.DayPolicy()
	if err != nil {
		return nil, fmt.Errorf("day policy: %w", err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	svc, err := services.NewCounterService(ctx, result.Backend, publisher, m, tally.Options{
		Policy: &policy,
		Logger: logger,
	})
	if err != nil {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		return nil, err
	}

	return &Counter{Service: svc, Backend: result.Backend, cleanup: result.Cleanup}, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
