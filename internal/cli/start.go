package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zana-AI/zana-planner/internal/config"
	"github.com/zana-AI/zana-planner/internal/daemon"
	"github.com/zana-AI/zana-planner/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the zana daemon",
	Long: `Start the zana daemon in the foreground. The daemon processes Telegram
messages, runs the agent loop, and sends nightly reminders until interrupted.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, cfgFile, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	return d.Run()
}
