package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/internal/config"
	"github.com/goliatone/go-formsheet/internal/server"
	"github.com/goliatone/go-formsheet/internal/sink/sheets"
	sqlitestore "github.com/goliatone/go-formsheet/internal/storage/sqlite"
	"github.com/goliatone/go-formsheet/internal/telemetry"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

func (a *app) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/submit",
		Long: `Starts the submission endpoint. Each accepted body is flattened into one
row and appended to the configured sink:

  sheets  Google Sheets (GOOGLE_SHEETS_CREDENTIALS, GOOGLE_SHEETS_ID)
  sqlite  a local append-only table (sink.sqlite_path)

The server drains in-flight requests on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) runServe(parent context.Context) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := a.logger(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting formsheet",
		zap.String("sink", cfg.Sink.Kind),
		zap.String("addr", cfg.Server.Addr),
		zap.Stringer("secrets", cfg.Secrets),
	)

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	appender, closeSink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("close sink", zap.Error(err))
		}
	}()

	metrics := telemetry.NewMetrics()
	pipeline, err := submission.NewPipeline(appender, cfg.Target(),
		submission.WithLogger(logger.Named("submission")),
		submission.WithObserver(metrics),
	)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, pipeline, server.Config{
		Addr:              cfg.Server.Addr,
		Mode:              cfg.Server.Mode,
		BodyLimit:         cfg.Server.BodyLimit,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ShutdownGrace:     cfg.Server.ShutdownGrace,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, server.WithLogger(logger.Named("http")), server.WithMetrics(metrics))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// openSink returns the appender for the configured sink and a function that
// releases it.
func openSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (submission.Appender, func() error, error) {
	switch cfg.Sink.Kind {
	case config.SinkSheets:
		appender, err := sheets.New(ctx,
			sheets.WithCredentialsJSON([]byte(cfg.Secrets.SheetsCredentials)),
			sheets.WithValueInputOption(cfg.Sink.ValueInput),
			sheets.WithLogger(logger.Named("sheets")),
		)
		if err != nil {
			return nil, nil, err
		}
		return appender, func() error { return nil }, nil
	case config.SinkSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Sink.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store.Rows(), store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink.Kind)
	}
}
