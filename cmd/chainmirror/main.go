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

	"chainmirror/internal/auth"
	"chainmirror/internal/backfill"
	"chainmirror/internal/chain"
	"chainmirror/internal/codec"
	"chainmirror/internal/config"
	"chainmirror/internal/limiter"
	"chainmirror/internal/metrics"
	"chainmirror/internal/reconcile"
	"chainmirror/internal/server"
	"chainmirror/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "chainmirror",
		Short:        "Ledger event synchronization pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync HTTP service",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().String("rpc", "", "ledger RPC URL")
	serveCmd.Flags().String("program", "", "target program address")
	serveCmd.Flags().String("webhook-secret", "", "webhook HMAC secret")
	serveCmd.Flags().String("admin-token", "", "admin bearer token")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	serveCmd.Flags().Int("backfill-batch-size", 25, "transactions per store batch")
	serveCmd.Flags().Duration("rpc-call-delay", 120*time.Millisecond, "delay between outbound RPC calls")
	serveCmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	serveCmd.Flags().String("gateway-url", "", "evidence gateway base URL")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Run one backfill pass from the command line",
		RunE:  runBackfill,
	}

	backfillCmd.Flags().String("rpc", "", "ledger RPC URL")
	backfillCmd.Flags().String("program", "", "target program address")
	backfillCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	backfillCmd.Flags().Int("limit", 100, "signatures to process")
	backfillCmd.Flags().String("before", "", "resume cursor (oldest signature of the previous page)")
	backfillCmd.Flags().Int("backfill-batch-size", 25, "transactions per store batch")
	backfillCmd.Flags().Duration("rpc-call-delay", 120*time.Millisecond, "delay between outbound RPC calls")
	backfillCmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	backfillCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	backfillCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(backfillCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ProgramAddress == "" {
		return fmt.Errorf("program address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	lim := limiter.New(map[string]limiter.ClassConfig{
		limiter.ClassRPC:     {Quota: cfg.RPCQuota, Window: cfg.RPCWindow},
		limiter.ClassWebhook: {Quota: cfg.WebhookQuota, Window: cfg.WebhookWindow},
		limiter.ClassUpload:  {Quota: cfg.UploadQuota, Window: cfg.UploadWindow},
	}, cfg.LimiterCap)

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.Open(ctx, cfg.PGDSN, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
	} else {
		logger.Warn("no store configured: deliveries will be acknowledged and dropped")
	}

	var (
		crawlerDep    server.Crawler
		reconcilerDep server.Reconciler
	)
	if cfg.RPCURL != "" && store != nil {
		client, err := chain.NewClient(cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("build rpc client: %w", err)
		}
		extractor := codec.NewExtractor(logger)
		crawlerDep = backfill.NewCrawler(backfill.Config{
			ProgramAddress: cfg.ProgramAddress,
			BatchSize:      cfg.BackfillBatchSize,
			CallDelay:      cfg.RPCCallDelay,
			MaxRetries:     cfg.MaxRetries,
			RetryBackoff:   cfg.RetryBackoff,
		}, client, store, extractor, m, logger)
		reconcilerDep = reconcile.New(client, store, logger)
	} else {
		logger.Warn("backfill and reconcile disabled: rpc url or store not configured")
	}

	var storeDep server.Store
	if store != nil {
		storeDep = store
	}

	srv := server.New(
		cfg,
		logger,
		auth.NewVerifier(cfg.WebhookSecret, logger),
		lim,
		codec.NewExtractor(logger),
		storeDep,
		crawlerDep,
		reconcilerDep,
		m,
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server start",
			zap.String("listen", cfg.ListenAddr),
			zap.String("program", cfg.ProgramAddress),
			zap.Bool("store_configured", store != nil),
			zap.Bool("rpc_configured", cfg.RPCURL != ""),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.ProgramAddress == "" {
		return fmt.Errorf("program address is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.PGDSN, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	client, err := chain.NewClient(cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("build rpc client: %w", err)
	}

	crawler := backfill.NewCrawler(backfill.Config{
		ProgramAddress: cfg.ProgramAddress,
		BatchSize:      cfg.BackfillBatchSize,
		CallDelay:      cfg.RPCCallDelay,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
	}, client, store, codec.NewExtractor(logger), nil, logger)

	limit, _ := cmd.Flags().GetInt("limit")
	before, _ := cmd.Flags().GetString("before")

	result, err := crawler.Run(ctx, limit, before)
	if err != nil {
		return err
	}

	logger.Info("backfill complete",
		zap.Int("processed", result.Processed),
		zap.Int("events", result.Events),
		zap.Int("errors", result.Errors),
		zap.String("last_signature", result.LastSignature),
		zap.Bool("has_more", result.HasMore),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
