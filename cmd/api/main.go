package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sysmon-api/internal/config"
	"sysmon-api/internal/repository"
	"sysmon-api/internal/router"
	"sysmon-api/internal/telemetry"
	"sysmon-api/internal/util"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sysmon-api",
	Short: "Host metrics ingestion and query API",
	Long: `sysmon-api receives CPU, RAM and process samples from monitoring agents,
stores them in MySQL or SQLite and serves the latest values, per-category
history and table statistics over HTTP.

Settings come from defaults, an optional YAML file and the environment
(DB_HOST, DB_PORT, PORT, API_NAME, ...), in that order.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"sysmon-api version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().String("config", "", "Path to a YAML config file (default $CONFIG_FILE)")
	rootCmd.Flags().Int("port", config.DefaultPort, "HTTP listen port (overrides PORT)")
	rootCmd.Flags().String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
}

func LoggerInitialize(cfg config.Log) (*util.Logger, error) {
	logger := &util.Logger{}

	if err := logger.Init(util.LogConfig{
		Dir:      cfg.Dir,
		FileName: cfg.File,
		Level:    cfg.Level,
		Console:  cfg.Console,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Service started")
	fmt.Fprintf(os.Stderr, "\n%s: sysmon-api %s started \n", time.Now().Format(time.RFC3339), Version)

	return logger, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := LoggerInitialize(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.DeInit()

	for _, w := range warnings {
		logger.LogEvent(util.LOG_LEVEL_WARN, w)
	}

	ctx := cmd.Context()
	metrics := telemetry.New()

	gw, err := repository.Open(ctx, cfg.Database, logger, repository.WithRetryHook(metrics.ObserveRetry))
	if err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to connect to database:", err)
		return err
	}
	metrics.RegisterDB(gw.DB(), cfg.Database.Name)

	store := repository.NewSQLStore(gw, logger)
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to initialize metric store:", err)
		return err
	}
	logger.LogEvent(util.LOG_LEVEL_INFO, "Schema ready on", gw.Driver())

	handler := router.NewRouter(router.Deps{
		Store:          store,
		Logger:         logger,
		Metrics:        metrics,
		APIName:        cfg.Server.APIName,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	return router.Run(ctx, cfg.Server, handler, logger)
}
