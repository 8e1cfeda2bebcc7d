package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tribune/internal/agent"
	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/server"
)

// Version is stamped at build time.
var Version = "1.0.0"

var (
	configPath string
	verbose    bool
	liveFlag   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tribune",
	Short: "tribune - autonomous social agent",
	Long: `tribune runs an autonomous public-voice agent: it perceives mentions
and timelines, decides its next action with a bandit-backed selector,
drafts persona-conditioned content through validation gates, publishes
across platforms with idempotent writes, measures outcomes, and feeds
the rewards back into its own policy.

All writes are dry runs unless LIVE mode is enabled.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop and dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tribune %s\n", Version)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("config ok: live=%v mode=%s port=%d\n", cfg.Live, cfg.GoalMode, cfg.Server.Port)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if liveFlag {
		cfg.SetLive(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAgent(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.DataDir, cfg.Logging.Debug, cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()

	a, err := agent.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build agent: %w", err)
	}
	defer a.Close()

	srv := server.New(cfg, a)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("tribune starting",
		zap.String("version", Version),
		zap.Bool("live", cfg.Live),
		zap.String("goal_mode", cfg.GoalMode),
		zap.Int("port", cfg.Server.Port))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	err = g.Wait()
	logger.Info("tribune stopped")
	return err
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tribune.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console logging")
	rootCmd.PersistentFlags().BoolVar(&liveFlag, "live", false, "enable LIVE mode (real writes)")

	rootCmd.AddCommand(runCmd, versionCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
