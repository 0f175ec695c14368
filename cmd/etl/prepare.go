package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/region-health-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/region-health-etl/internal/adapter/kafka"
	"github.com/couchcryptid/region-health-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/region-health-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/region-health-etl/internal/config"
	"github.com/couchcryptid/region-health-etl/internal/observability"
	"github.com/couchcryptid/region-health-etl/internal/pipeline"
	"github.com/couchcryptid/region-health-etl/internal/resolver"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Build the region table from the source files",
	Long: "Loads the statistics workbook, census CSV, and inspection registry, resolves every " +
		"establishment to a region through the reverse geocoder, and writes OUTPUT_PATH. " +
		"An interrupted run still writes the regions accumulated so far.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, err := runPrepare(ctx, cfg, logger, observability.NewMetrics())
		return err
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}

// runPrepare wires the adapters for one run and executes it.
func runPrepare(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (pipeline.Result, error) {
	geocoder := nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, metrics, logger)
	limited := resolver.New(geocoder, resolver.Config{
		MinInterval: cfg.GeocoderMinInterval,
		MaxRetries:  cfg.GeocoderMaxRetries,
		ErrorWait:   cfg.GeocoderErrorWait,
	}, clockwork.NewRealClock(), logger, metrics)

	var store resolver.Store
	if cfg.GeocoderCachePath != "" {
		st, err := sqlite.Open(ctx, cfg.GeocoderCachePath)
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("open lookup cache: %w", err)
		}
		defer closeLogged(logger, "lookup cache", st)
		if n, err := st.Count(ctx); err == nil {
			logger.Info("lookup cache opened", "path", cfg.GeocoderCachePath, "entries", n)
		}
		store = st
	}
	cached := resolver.NewCachedResolver(limited, cfg.GeocoderCacheSize, store, logger, metrics)

	var sinks []pipeline.RecordSink
	if cfg.KafkaEnabled() {
		pub := kafkaadapter.NewPublisher(cfg, logger)
		defer closeLogged(logger, "kafka publisher", pub)
		sinks = append(sinks, pub)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(
		pipeline.NewFileSources(cfg, logger),
		cached,
		pipeline.NewFileTable(cfg.OutputPath, logger),
		sinks,
		pipeline.Options{RegionPrefix: cfg.RegionPrefix, ProgressInterval: cfg.ProgressInterval},
		logger,
		metrics,
	)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	result, err := p.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("prepare: %w", err)
	}
	if result.Partial {
		logger.Warn("run interrupted, table is partial",
			"path", cfg.OutputPath,
			"processed", result.Inspections.Processed,
			"total", result.Inspections.Total,
		)
	}
	return result, nil
}

func closeLogged(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error(name+" close error", "error", err)
	}
}
