package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sessionvault/internal/config"
	"github.com/aretw0/sessionvault/pkg/persistence/middleware"
	"github.com/aretw0/sessionvault/pkg/ports"
	"github.com/spf13/cobra"
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"backend":    "backend",
	"dir":        "file.dir",
	"redis-addr": "redis.addr",
	"log-level":  "log.level",
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sessionvault",
		Short: "Inspect and maintain session storage",
		Long: `sessionvault reads and writes session records in a memory, file or Redis backend,
manages their advisory locks and evicts stale sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("backend", config.BackendMemory, "Storage backend: memory, file or redis")
	rootCmd.PersistentFlags().String("dir", "", "Session directory for the file backend")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for the redis backend")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newExistsCmd(),
		newRmCmd(),
		newLockCmd(),
		newUnlockCmd(),
		newGCCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies every persistent flag the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	overrides := map[string]any{}
	for flag, key := range flagKeys {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		value, _ := cmd.Flags().GetString(flag)
		overrides[key] = value
	}
	return config.Load(path, overrides)
}

// env is what every subcommand needs to talk to storage.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider ports.StorageProvider
	// backend is provider without middleware, for backend-specific checks.
	backend ports.StorageProvider
	close   func() error
}

func openEnv(ctx context.Context, cmd *cobra.Command, mws ...middleware.Middleware) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	provider, closeFn, err := cfg.OpenProvider(ctx, logger)
	if err != nil {
		return nil, err
	}
	mws = append([]middleware.Middleware{middleware.NewLoggingMiddleware(logger)}, mws...)

	return &env{
		cfg:      cfg,
		logger:   logger,
		provider: middleware.Chain(provider, mws...),
		backend:  provider,
		close:    closeFn,
	}, nil
}

func (e *env) Close() {
	if err := e.close(); err != nil {
		e.logger.Warn("Failed to close storage backend", "err", err)
	}
}
