// cmd/main.go is the application entry point.
// It wires together all layers behind a cobra CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/config"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/database"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/logging"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/notify"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "alumni",
	Short: "Alumni event registration and attendance service",
	Long: `alumni runs the event registration and attendance API: quota-aware
registration with waiting lists, cancellation approval, QR check-in and the
post-event absence sweep.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, finalizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore returns the configured store and a cleanup func.
func openStore(ctx context.Context) (repository.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))
	return repository.NewPostgresStore(pool), pool.Close, nil
}

func newPublisher() notify.Publisher {
	if cfg.Kafka.Broker == "" {
		logger.Info("kafka broker not configured; lifecycle events are not published")
		return notify.Nop{}
	}
	logger.Info("publishing lifecycle events",
		zap.String("broker", cfg.Kafka.Broker),
		zap.String("topic", cfg.Kafka.Topic))
	return notify.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic)
}

func policy() service.Policy {
	return service.Policy{
		SanctionThreshold:     cfg.Policy.SanctionThreshold,
		CancellationCutoff:    cfg.Policy.CancellationCutoff,
		WaitlistOverrideQuota: cfg.Policy.WaitlistOverrideQuota,
	}
}
