package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lalith-99/marginalia/internal/config"
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/persist"
	"github.com/lalith-99/marginalia/internal/sidebar"
	"github.com/lalith-99/marginalia/internal/store"
	"github.com/lalith-99/marginalia/internal/streamer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type watchFlags struct {
	group string
	limit int
}

func newWatchCmd(deps func() (*config.Config, *zap.Logger)) *cobra.Command {
	var f watchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a headless sidebar that follows a group's annotations in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			return runWatch(cmd.Context(), cfg, logger, f)
		},
	}
	cmd.Flags().StringVar(&f.group, "group", "", "group to load annotations from before streaming")
	cmd.Flags().IntVar(&f.limit, "limit", 200, "maximum number of annotations to load")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, logger *zap.Logger, f watchFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sb, err := sidebar.New(
		models.SidebarSettings{Route: cfg.Route},
		store.Env{
			Scheduler:  store.RealScheduler{},
			Logger:     logger,
			Production: cfg.Production(),
		},
		sidebar.WithProfile(models.Profile{UserID: cfg.UserID}),
		sidebar.WithAnchoringTimeout(cfg.AnchorTimeout),
	)
	if err != nil {
		return err
	}

	unsubscribe := sb.Subscribe(func() {
		logger.Debug("sidebar state changed",
			zap.Int("annotations", sb.AnnotationCount()),
			zap.Int("pending_updates", sb.PendingUpdateCount()),
			zap.Int("pending_mentions", sb.PendingMentionCount()),
			zap.Int("drafts", sb.CountDrafts()),
		)
	})
	defer unsubscribe()

	if cfg.UserID != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		syncer := persist.NewDraftSyncer(sb, persist.NewRedisDraftStore(rdb, cfg.DraftKeyPrefix), cfg.UserID, logger)
		n, err := syncer.Restore(ctx)
		if err != nil {
			logger.Warn("failed to restore drafts", zap.Error(err))
		} else if n > 0 {
			logger.Info("drafts restored", zap.Int("count", n))
		}
		go func() {
			if err := syncer.Run(ctx); err != nil {
				logger.Warn("draft sync stopped", zap.Error(err))
			}
		}()
	}

	if f.group != "" {
		loader := streamer.NewLoader(nil, cfg.APIURL, cfg.AccessToken, logger)
		if err := loader.Load(ctx, sb, f.group, f.limit); err != nil {
			return fmt.Errorf("load annotations: %w", err)
		}
	}

	st := streamer.New(sb, streamer.Options{
		URL:              cfg.WebsocketURL,
		AccessToken:      cfg.AccessToken,
		ApplyImmediately: cfg.ApplyUpdatesImmediately,
	}, logger)

	logger.Info("watching for annotation changes",
		zap.String("url", cfg.WebsocketURL),
		zap.String("client_id", st.ClientID()),
	)
	if err := st.Run(ctx); err != nil {
		return fmt.Errorf("stream notifications: %w", err)
	}
	logger.Info("stopped watching",
		zap.Int("annotations", sb.AnnotationCount()),
		zap.Int("pending_updates", sb.PendingUpdateCount()),
	)
	return nil
}
