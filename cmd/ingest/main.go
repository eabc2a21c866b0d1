package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sysmon-api/internal/config"
	"sysmon-api/internal/domain"
	"sysmon-api/internal/repository"
	"sysmon-api/internal/util"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sysmon-ingest",
	Short: "Seed the metrics database with synthetic samples",
	Long: `sysmon-ingest writes one synthetic CPU, RAM and process sample per step
over the given window, ending now, straight into the configured database.
Samples are committed in batches so the latest-value cache moves forward
exactly as it does behind POST /api/data.`,
	SilenceUsage: true,
	RunE:         runIngest,
}

func init() {
	rootCmd.Flags().String("config", "", "Path to a YAML config file (default $CONFIG_FILE)")
	rootCmd.Flags().Duration("duration", 5*time.Minute, "Time window to fill, ending now")
	rootCmd.Flags().Duration("step", 10*time.Second, "Interval between samples")
	rootCmd.Flags().Int("batch", 30, "Samples per transaction")
}

func runIngest(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	step, _ := cmd.Flags().GetDuration("step")
	batch, _ := cmd.Flags().GetInt("batch")
	if step <= 0 || batch <= 0 {
		return fmt.Errorf("step and batch must be positive")
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := &util.Logger{}
	if err := logger.Init(util.LogConfig{Level: cfg.Log.Level, Console: true}); err != nil {
		return err
	}
	defer logger.DeInit()
	for _, w := range warnings {
		logger.LogEvent(util.LOG_LEVEL_WARN, w)
	}

	ctx := cmd.Context()
	gw, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	store := repository.NewSQLStore(gw, logger)
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize store for ingestion: %w", err)
	}

	endTime := time.Now()
	return generateAndIngest(ctx, store, logger, endTime.Add(-duration), endTime, step, batch)
}

func generateAndIngest(ctx context.Context, s domain.MetricStore, logger *util.Logger, startTime, endTime time.Time, step time.Duration, batch int) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	logger.LogEvent(util.LOG_LEVEL_INFO, "Ingesting data from", startTime.Format(time.RFC3339), "to", endTime.Format(time.RFC3339))

	pending := make([]domain.MetricSample, 0, batch)
	stored := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		res, err := s.Ingest(ctx, pending)
		if err != nil {
			return fmt.Errorf("ingesting batch ending %d: %w", pending[len(pending)-1].Timestamp, err)
		}
		stored += res.Accepted
		pending = pending[:0]
		return nil
	}

	for t := startTime; !t.After(endTime); t = t.Add(step) {
		pending = append(pending, syntheticSample(rng, t))
		if len(pending) == batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Data ingestion complete.", stored, "samples stored")
	return nil
}

// syntheticSample produces a plausible host reading. RAM is in KB.
func syntheticSample(rng *rand.Rand, t time.Time) domain.MetricSample {
	const totalKB = 16 * 1024 * 1024

	usedKB := int64(rng.Float64() * totalKB)
	running := rng.Int63n(8) + 1
	sleeping := rng.Int63n(300) + 100
	zombie := rng.Int63n(3)
	stopped := rng.Int63n(5)

	return domain.MetricSample{
		Timestamp: t.Unix(),
		CPU:       domain.CPUMetric{PorcentajeUso: float64(rng.Intn(10001)) / 100},
		RAM: domain.RAMMetric{
			Total:         totalKB,
			Libre:         totalKB - usedKB,
			Uso:           usedKB,
			PorcentajeUso: float64(usedKB) * 100 / totalKB,
		},
		Processes: domain.ProcessMetric{
			Corriendo: running,
			Durmiendo: sleeping,
			Zombie:    zombie,
			Parados:   stopped,
			Total:     running + sleeping + zombie + stopped,
		},
	}
}
