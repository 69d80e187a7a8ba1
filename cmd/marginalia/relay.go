package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/marginalia/internal/config"
	"github.com/lalith-99/marginalia/internal/db"
	"github.com/lalith-99/marginalia/internal/relay"
	"github.com/lalith-99/marginalia/internal/repository"
	"github.com/lalith-99/marginalia/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRelayCmd(deps func() (*config.Config, *zap.Logger)) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Serve the annotation API and push notifications over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			return runRelay(cmd.Context(), cfg, logger)
		},
	}
}

func runRelay(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	var annotationRepo repository.AnnotationRepository = postgres.NewAnnotationStore(database.Pool())

	hub := relay.NewHub(logger)
	broker := relay.NewRedisBroker(rdb, cfg.NotificationChannel, hub, logger)
	go func() {
		if err := broker.Run(ctx); err != nil {
			logger.Error("notification broker stopped", zap.Error(err))
			stop()
		}
	}()

	router := relay.NewRouter(relay.Deps{
		Repo:           annotationRepo,
		Notifier:       broker,
		Hub:            hub,
		JWTSecret:      cfg.JWTSecret,
		PassphraseHash: cfg.PassphraseHash,
		Health: func(ctx context.Context) error {
			if err := database.Health(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting relay",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
