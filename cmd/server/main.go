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

	"golang.org/x/sync/errgroup"

	"github.com/example/ride-negotiation/internal/clock"
	"github.com/example/ride-negotiation/internal/config"
	httpapi "github.com/example/ride-negotiation/internal/http"
	"github.com/example/ride-negotiation/internal/logging"
	"github.com/example/ride-negotiation/internal/negotiation"
	"github.com/example/ride-negotiation/internal/publish"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	clk := clock.Real{}

	store := negotiation.New(
		negotiation.WithClock(clk),
		negotiation.WithLogger(logger),
		negotiation.WithRetention(cfg.RetentionWindow),
	)
	if cfg.SeedDemo {
		if err := store.Seed(negotiation.DemoAccounts()...); err != nil {
			return fmt.Errorf("seed demo accounts: %w", err)
		}
		logger.Info("demo accounts seeded", "count", len(negotiation.DemoAccounts()))
	}

	g, gctx := errgroup.WithContext(ctx)

	sweeper := negotiation.NewSweeper(store, clk, cfg.SweepInterval, logger)
	g.Go(func() error { return sweeper.Run(gctx) })

	if len(cfg.KafkaBrokers) > 0 {
		pub := publish.NewKafkaPublisher(
			publish.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic),
			cfg.EventBuffer,
			publish.WithLogger(logger),
		)
		unsubscribe := store.Subscribe(pub.Handle)
		g.Go(func() error {
			defer unsubscribe()
			defer func() {
				if err := pub.Close(); err != nil {
					logger.Warn("kafka writer close", "error", err)
				}
			}()
			return pub.Run(gctx)
		})
		logger.Info("publishing events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(store, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	g.Go(func() error {
		logger.Info("ride-negotiation listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
