package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fieldsign/internal/auth"
	"fieldsign/internal/blobstore"
	"fieldsign/internal/config"
	"fieldsign/internal/mirror"
	"fieldsign/internal/notify"
	"fieldsign/internal/policy"
	"fieldsign/internal/server"
	"fieldsign/internal/signing"
	"fieldsign/internal/store"
)

const shutdownGrace = 10 * time.Second

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the fieldsign API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("FIELDSIGN_JWT_SECRET is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			blobRoot := filepath.Join(filepath.Dir(cfg.DBPath), ".fieldsign", "blobs")
			blobs, err := blobstore.New(blobRoot)
			if err != nil {
				return fmt.Errorf("init blob store: %w", err)
			}

			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			limiter := policy.NewPhotoRateLimiter()
			engine := policy.NewEngine(catalog, limiter, slog.Default().With("component", "policy"))
			dispatcher := &notify.LogDispatcher{Logger: slog.Default().With("component", "notify")}

			var signingOpts []signing.Option
			var flusher *mirror.Flusher
			if cfg.Mirror.Enabled {
				client, err := mirror.NewPostgresClient(cfg.Mirror.DSN)
				if err != nil {
					return fmt.Errorf("connect mirror: %w", err)
				}
				defer client.Close()
				flusher = mirror.NewFlusher(st, client, slog.Default().With("component", "mirror"))
				signingOpts = append(signingOpts, signing.WithMirrorWake(flusher.Wake))
			}

			svc := signing.NewService(st, server.Identity{}, dispatcher, cfg.ReviewBaseURL,
				slog.Default().With("component", "signing"), signingOpts...)

			srv := server.New(server.Options{
				Addr:       addr,
				Store:      st,
				Signing:    svc,
				Engine:     engine,
				Limiter:    limiter,
				Catalog:    catalog,
				Blobs:      blobs,
				JWTSecret:  []byte(cfg.JWTSecret),
				SessionTTL: auth.DefaultSessionTTL,
				Version:    version,
				Logger:     logger,
			})

			group, ctx := errgroup.WithContext(ctx)

			httpServer := srv.HTTPServer()
			group.Go(func() error {
				logger.Info("starting server", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			group.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			if flusher != nil {
				group.Go(func() error {
					return flusher.Run(ctx, cfg.FlushInterval())
				})
			}

			group.Go(func() error {
				return runSweepSchedule(ctx, cfg.SweepSchedule, svc)
			})

			return group.Wait()
		},
	}
}

// runSweepSchedule expires stale signing requests on a cron schedule. The
// lookup path also expires lazily; this bound is how long an abandoned
// request can linger as pending.
func runSweepSchedule(ctx context.Context, schedule string, svc *signing.Service) error {
	logger := slog.Default().With("component", "sweep")

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		count, err := svc.CleanupExpired(ctx)
		if err != nil {
			logger.Error("scheduled cleanup failed", "error", err)
			return
		}
		if count > 0 {
			logger.Info("scheduled cleanup", "expired", count)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func loadCatalog(cfg *config.Config) (policy.Catalog, error) {
	if cfg.TierCatalogPath == "" {
		return policy.DefaultCatalog(), nil
	}
	catalog, err := policy.LoadCatalog(cfg.TierCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load tier catalog: %w", err)
	}
	return catalog, nil
}
