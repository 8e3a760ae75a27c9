package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"durood/internal/amqp"
	"durood/internal/cli"
	apphttp "durood/internal/http"
	"durood/internal/log"
	"durood/internal/metrics"
	"durood/internal/services"
	"durood/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger := cli.SetupLogger("info")
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting durood",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"day_cutoff_hour", cfg.DayCutoffHour,
		"day_utc_offset", cfg.DayUTCOffset,
		"rollover_interval", cfg.RolloverInterval)

	ctx, cancel := cli.SignalContext(context.Background(), logger.Logger)
	defer cancel()

	// AMQP is optional: the counter keeps working locally without it
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - counter events will not be published")
	}

	m := metrics.New()
	counter, err := cli.OpenCounter(ctx, logger.Logger, cfg, publisher, m)
	if err != nil {
		logger.Error("Failed to open counter", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	var ready apphttp.ReadyCheck
	if p, ok := counter.Backend.(interface{ Ping(context.Context) error }); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, counter.Service, apphttp.Options{
		Metrics: m,
		Ready:   ready,
		Logger:  logger,
	})
	ticker := worker.NewRolloverTicker(counter.Service, cfg.RolloverInterval, logger.Logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := ticker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := counter.Close(closeCtx); err != nil {
		logger.Error("Counter close error", log.FieldError, err)
	}

	if runErr != nil {
		logger.Error("Server stopped with error", log.FieldError, runErr)
		os.Exit(1)
	}
	logger.Info("Server shutdown complete")
}
