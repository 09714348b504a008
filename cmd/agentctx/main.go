package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentctx/internal/config"
	"agentctx/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE; nil means defaults.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentctx",
	Short: "agentctx - prompt context optimizer for coding agents",
	Long: `agentctx assembles the prompt context for a coding task.

It indexes the project style guide, task templates and the source files a
task touches, scores every fragment against the task, and packs the most
relevant ones into a token budget.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		if cfg.Logging.DebugMode {
			level := cfg.Logging.Level
			if verbose {
				level = "debug"
			}
			dir := config.ResolvePath(workspaceDir(), cfg.Logging.Dir)
			if err := logging.Initialize(dir, logging.Options{
				DebugMode:  true,
				Level:      level,
				JSONFormat: cfg.Logging.JSONFormat,
				Categories: cfg.Logging.Categories,
			}); err != nil {
				logger.Warn("file logging unavailable", zap.Error(err))
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.agentctx/config.yaml)")

	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(fragmentCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// workspaceDir resolves the --workspace flag, falling back to the working directory.
func workspaceDir() string {
	if workspace != "" {
		if abs, err := filepath.Abs(workspace); err == nil {
			return abs
		}
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// loadConfig reads --config, or the workspace config file when it exists.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(workspaceDir(), ".agentctx", "config.yaml")
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// appConfig returns the loaded configuration or the defaults.
func appConfig() *config.Config {
	if cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

func zapLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
