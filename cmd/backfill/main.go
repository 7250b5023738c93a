// Command backfill fills the verification and review state of tenancies
// created before those fields existed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rentwise/rentwise/internal/config"
	"github.com/rentwise/rentwise/internal/database"
	"github.com/rentwise/rentwise/internal/logger"
	"github.com/rentwise/rentwise/internal/tenancy"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile = pflag.String("config", "", "path to the configuration file")
		resume     = pflag.Bool("resume", false, "continue after the last checkpoint")
		dryRun     = pflag.Bool("dry-run", false, "count tenancies without writing")
		batchSize  = pflag.Int("batch-size", 0, "tenancies read per batch (default from config)")
	)
	pflag.Parse()

	if err := run(*configFile, *batchSize, tenancy.Options{Resume: *resume, DryRun: *dryRun}); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

func run(configFile string, batchSize int, opts tenancy.Options) error {
	if err := config.LoadConfig(configFile); err != nil {
		return err
	}
	log, err := logger.Init(logger.Config{
		Level:       config.Current.Log.Level,
		Environment: config.Current.Log.Environment,
		ServiceName: "rentwise-backfill",
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	if batchSize <= 0 {
		batchSize = config.Current.Backfill.BatchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, config.Current.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	backfiller := tenancy.NewBackfiller(db,
		tenancy.WithBatchSize(batchSize),
		tenancy.WithCheckpoint(config.Current.Backfill.Checkpoint),
		tenancy.WithLogger(log),
	)
	result, err := backfiller.Run(ctx, opts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		log.Error("Error printing result", zap.Error(encErr))
	}
	return err
}
