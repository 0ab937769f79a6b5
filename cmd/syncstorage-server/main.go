// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Command syncstorage-server runs the sync storage HTTP surface (C8)
// together with the colocated tokenserver (C6) and the health/Dockerflow
// endpoints (§4.10, §6), all behind one listener on cfg.Addr. The
// metrics.addr setting is not used to open a listener.
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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/api/httpapi"
	"github.com/mozilla-services/syncstorage-go/hawk"
	"github.com/mozilla-services/syncstorage-go/internal/config"
	"github.com/mozilla-services/syncstorage-go/internal/health"
	"github.com/mozilla-services/syncstorage-go/internal/memory"
	"github.com/mozilla-services/syncstorage-go/internal/metrics"
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
	"github.com/mozilla-services/syncstorage-go/storage/sqlstore"
	"github.com/mozilla-services/syncstorage-go/tokenserver"
)

func main() {
	cfg := config.Default()

	root := &cobra.Command{
		Use:           "syncstorage-server",
		Short:         "sync storage + tokenserver HTTP service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	config.Bind(root.Flags(), cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	registry := monkit.Default
	rec := metrics.NewRecorder(registry)

	quotaPolicy := storage.QuotaPolicy{
		Enabled:    cfg.Quota.Enabled,
		Enforce:    cfg.Quota.Enforce,
		QuotaBytes: cfg.Quota.QuotaBytes,
		OnAtLimit:  rec.CountQuotaAtLimit,
	}
	log.Info("quota policy",
		zap.Bool("enabled", quotaPolicy.Enabled),
		zap.Bool("enforce", quotaPolicy.Enforce),
		zap.String("limit", memory.Size(quotaPolicy.QuotaBytes).String()),
	)

	store, err := sqlstore.Open(ctx, cfg.Database.DSN, timestamp.NewSystemClock(), quotaPolicy)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer store.Close()

	if cfg.Tokenserver.MasterSecret == "" {
		return errors.New("tokenserver.master-secret is required")
	}
	codec, err := hawk.NewCodec([]byte(cfg.Tokenserver.MasterSecret))
	if err != nil {
		return fmt.Errorf("build hawk codec: %w", err)
	}
	verifier := hawk.NewVerifier(codec)

	oauthVerifier := tokenserver.NewFxAVerifier("https://oauth.accounts.firefox.com", nil)
	reconciler := tokenserver.NewReconciler(
		log.Named("tokenserver"),
		tokenserver.NewMemStore(),
		oauthVerifier,
		codec,
		cfg.Tokenserver.FxAEmailDomain,
		cfg.Tokenserver.ServiceID,
		cfg.Tokenserver.Node,
		[]byte(cfg.Tokenserver.MetricsHashSecret),
		int64(cfg.Tokenserver.DefaultDuration.Seconds()),
		int64(cfg.Tokenserver.MaxDuration.Seconds()),
		func() int64 { return time.Now().Unix() },
	)

	srv := &httpapi.Server{
		Pool:     store,
		Verifier: verifier,
		Limits:   limitsFromConfig(cfg),
		Metrics:  rec,
		Log:      log.Named("httpapi"),
	}

	healthSrv := health.NewServer()
	poolCheck := health.NewLivenessTTLJitter(health.NewPoolCheck(store), 12*time.Hour, 2*time.Hour)
	if err := healthSrv.AddCheck(poolCheck); err != nil {
		return fmt.Errorf("register pool check: %w", err)
	}

	build := health.BuildInfo{
		Source:  "https://github.com/mozilla-services/syncstorage-go",
		Version: version,
		Commit:  commit,
	}

	mux := httpapi.NewMux(srv, reconciler, healthSrv, build)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func limitsFromConfig(cfg *config.Config) extract.Limits {
	l := extract.DefaultLimits()
	l.MaxQuotaLimit = cfg.Quota.QuotaBytes
	return l
}

func newLogger(levelName string, dev bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// version and commit are overridden at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)
