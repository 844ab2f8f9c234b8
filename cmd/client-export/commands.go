package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Sternrassler/upmind-client-export/pkg/client"
	"github.com/Sternrassler/upmind-client-export/pkg/config"
	"github.com/Sternrassler/upmind-client-export/pkg/exporter"
	"github.com/Sternrassler/upmind-client-export/pkg/logging"
	"github.com/Sternrassler/upmind-client-export/pkg/metrics"
	"github.com/Sternrassler/upmind-client-export/pkg/pagination"
	"github.com/Sternrassler/upmind-client-export/pkg/runstate"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// flags holds command line overrides of the environment configuration.
type flags struct {
	envFiles    []string
	output      string
	logLevel    string
	pretty      bool
	metricsFile string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "client-export",
		Short: "Export Upmind clients to a CRM import CSV",
		Long: `Fetches every client from the Upmind API (following pagination),
normalizes name, company, email, phone, source and notes, and writes a CSV
with constant status, client type, owner and organization columns.

Configuration is read from the environment (and an optional .env file):
UPMIND_API_TOKEN (required), UPMIND_API_URL, CRM_OWNER_ID,
CRM_ORGANIZATION_ID, CRM_STATUS, CRM_CLIENT_TYPE, OUTPUT_PATH, REDIS_URL,
METRICS_TEXTFILE, LOG_LEVEL, LOG_PRETTY.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, f)
		},
	}

	root.PersistentFlags().StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().BoolVar(&f.pretty, "pretty", false, "human-readable console logs; overrides LOG_PRETTY")
	root.Flags().StringVarP(&f.output, "output", "o", "", "CSV output path; overrides OUTPUT_PATH")
	root.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile at exit; overrides METRICS_TEXTFILE")

	root.AddCommand(newLastRunCmd(f))

	return root
}

func newLastRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "last-run",
		Short: "Show the summary of the most recent export (requires REDIS_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLastRun(cmd, f)
		},
	}
}

// setup loads dotenv files and configures logging before anything else can fail.
func setup(cmd *cobra.Command, f *flags) (zerolog.Logger, error) {
	dotenvErr := config.LoadDotEnv(f.envFiles...)

	level := os.Getenv(config.EnvLogLevel)
	if f.logLevel != "" {
		level = f.logLevel
	}
	pretty, _ := strconv.ParseBool(os.Getenv(config.EnvLogPretty))
	pretty = pretty || f.pretty

	logging.Setup(logging.Config{
		Level:  logging.ParseLevel(level),
		Pretty: pretty,
		Output: cmd.ErrOrStderr(),
	})
	logger := logging.NewLogger("cli")

	if dotenvErr != nil {
		logger.Error().Err(dotenvErr).Msg("Failed to load env file")
		return logger, fmt.Errorf("load env file: %w", dotenvErr)
	}
	return logger, nil
}

func loadConfig(cmd *cobra.Command, f *flags, logger zerolog.Logger) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Str("error_class", errorClass(err)).Msg("Configuration error")
		return cfg, err
	}

	if cmd.Flags().Changed("output") {
		cfg.OutputPath = f.output
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
	return cfg, nil
}

func runExport(cmd *cobra.Command, f *flags) error {
	logger, err := setup(cmd, f)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, f, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var store exporter.RunStore
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect to Redis")
			return err
		}
		defer redisClient.Close()
		store = runstate.NewStore(redisClient)
	}

	fetcher, err := exporter.NewAPIFetcher(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create API client")
		return err
	}

	result, err := exporter.New(fetcher, store).Run(ctx, exporter.OptionsFromConfig(cfg))

	if cfg.MetricsFile != "" {
		if mErr := metrics.WriteTextfile(cfg.MetricsFile); mErr != nil {
			logger.Warn().Err(mErr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics textfile")
		}
	}

	if err != nil {
		logger.Error().Err(err).Str("error_class", errorClass(err)).Msg("Export failed")
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d clients to %s\n", result.Fetched, result.OutputPath)
	return nil
}

func runLastRun(cmd *cobra.Command, f *flags) error {
	logger, err := setup(cmd, f)
	if err != nil {
		return err
	}

	redisURL := os.Getenv(config.EnvRedisURL)
	if redisURL == "" {
		err := fmt.Errorf("%s is not set", config.EnvRedisURL)
		logger.Error().Err(err).Msg("Configuration error")
		return err
	}

	ctx := cmd.Context()
	redisClient, err := connectRedis(ctx, redisURL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis")
		return err
	}
	defer redisClient.Close()

	summary, err := runstate.NewStore(redisClient).LastRun(ctx)
	if errors.Is(err, runstate.ErrNoRun) {
		fmt.Fprintln(cmd.OutOrStdout(), "No export run recorded")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read last run")
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s %s at %s: %d clients fetched, %d rows written to %s (took %s)\n",
		summary.RunID, summary.Status, summary.FinishedAt.Format("2006-01-02 15:04:05 MST"),
		summary.Fetched, summary.Written, summary.OutputPath, summary.Duration())
	if summary.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", summary.Error)
	}
	return nil
}

func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	redisClient, err := runstate.NewRedisClient(redisURL)
	if err != nil {
		return nil, err
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return redisClient, nil
}

// errorClass names the failure class for the final log line.
func errorClass(err error) string {
	var shapeErr *pagination.ShapeError
	switch {
	case errors.Is(err, config.ErrMissingToken):
		return "configuration"
	case errors.Is(err, exporter.ErrRunInProgress):
		return "run_in_progress"
	case errors.As(err, &shapeErr):
		return "payload_shape"
	case client.ClassOf(err) != "":
		return "transport_" + string(client.ClassOf(err))
	default:
		return "export"
	}
}
