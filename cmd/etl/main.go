package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/export"
	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/fetch"
	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/gcs"
	httpadapter "github.com/couchcryptid/vaccination-data-etl/internal/adapter/http"
	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/vaccination-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/source"
	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/vaccination-data-etl/internal/config"
	"github.com/couchcryptid/vaccination-data-etl/internal/observability"
	"github.com/couchcryptid/vaccination-data-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		inputDir  string
		inputURL  string
		outputDir string
		geography string
		workers   int
	)

	cmd := &cobra.Command{
		Use:           "etl",
		Short:         "Build the daily vaccination dataset from per-location reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("input-dir") {
				cfg.InputDir = inputDir
			}
			if flags.Changed("input-url") {
				cfg.InputBaseURL = inputURL
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("geography") {
				cfg.GeographyFile = geography
			}
			if flags.Changed("workers") {
				if workers <= 0 {
					return fmt.Errorf("invalid --workers %d: must be positive", workers)
				}
				cfg.Workers = workers
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&inputDir, "input-dir", "", "Local input directory (overrides INPUT_DIR)")
	cmd.Flags().StringVar(&inputURL, "input-url", "", "Base URL to fetch inputs from (overrides INPUT_BASE_URL)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory (overrides OUTPUT_DIR)")
	cmd.Flags().StringVar(&geography, "geography", "", "Geography YAML file (overrides GEOGRAPHY_FILE)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Locations transformed concurrently (overrides WORKERS)")

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var traceOut io.Writer
	if cfg.TraceStdout {
		traceOut = os.Stdout
	}
	tp, err := observability.NewTracerProvider(traceOut)
	if err != nil {
		logger.Error("failed to start tracing", "error", err)
		return err
	}
	defer func() {
		if err := observability.ShutdownTracer(context.Background(), tp); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opener source.Opener = source.DirOpener{Root: cfg.InputDir}
	if cfg.InputBaseURL != "" {
		opener = fetch.NewClient(cfg.InputBaseURL, cfg.FetchTimeout, logger, metrics)
		logger.Info("reading inputs over http", "base_url", cfg.InputBaseURL)
	} else {
		logger.Info("reading inputs from directory", "dir", cfg.InputDir)
	}
	reader := source.NewReader(opener, cfg.GeographyFile, cfg.Workers, logger)

	loaders, closers, err := buildLoaders(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()
	if err != nil {
		logger.Error("failed to configure sinks", "error", err)
		return err
	}

	p := pipeline.New(reader, loaders, logger, metrics, clockwork.NewRealClock(), cfg.Workers)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
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

	_, runErr := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := observability.Push(pushCtx, cfg.PushgatewayURL, p.Status().RunID, metrics); err != nil {
			logger.Error("metrics push failed", "error", err)
		}
	}
	return runErr
}

// buildLoaders returns the enabled sinks in load order. The file writer runs
// first so the bucket publisher finds the fresh outputs.
func buildLoaders(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Loader, []io.Closer, error) {
	loaders := []pipeline.Loader{export.NewWriter(cfg.OutputDir, logger)}
	var closers []io.Closer

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, w)
		closers = append(closers, w)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.InfluxEnabled() {
		w := influx.NewWriter(cfg, logger)
		loaders = append(loaders, w)
		closers = append(closers, w)
		logger.Info("influxdb sink enabled", "url", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}
	if cfg.SQLEnabled() {
		s, err := sqlstore.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, closers, err
		}
		loaders = append(loaders, s)
		closers = append(closers, s)
		logger.Info("sql sink enabled")
	}
	if cfg.GCSEnabled() {
		pub, err := gcs.NewPublisher(ctx, cfg, logger)
		if err != nil {
			return nil, closers, err
		}
		loaders = append(loaders, pub)
		closers = append(closers, pub)
		logger.Info("gcs publisher enabled", "bucket", cfg.GCSBucket, "prefix", cfg.GCSPrefix)
	}
	return loaders, closers, nil
}
