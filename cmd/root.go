// Package cmd implements the helix command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zenlearn/helix/internal/config"
	"github.com/zenlearn/helix/internal/engine"
	"github.com/zenlearn/helix/internal/logger"
	"github.com/zenlearn/helix/internal/readiness"
	"github.com/zenlearn/helix/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "helix",
	Short: "Triple-helix stitch scheduler",
	Long: "Helix — spaced-repetition scheduling engine with position-based\n" +
		"stitch queues, three-tube rotation, and a readiness cache.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides HELIX_DB env var)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config (or defaults) and
// applies environment overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then the config file, then HELIX_DB, then the default XDG
// path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, config.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, config.EnsureDir(cfg.DBPath)
	}
	return config.DefaultDBPath()
}

// newLogger builds the logger for the configured mode.
func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(cfg.LogMode)
}

// openEngine wires a store-backed engine for one CLI invocation. The
// redis mirror is attached only when configured and reachable; the
// scheduler works identically without it.
func openEngine(cmd *cobra.Command) (*engine.Engine, *store.Store, *logger.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Open(dbPath, log)
	if err != nil {
		return nil, nil, nil, err
	}

	var mirror readiness.Mirror
	if cfg.RedisAddr != "" {
		rm := readiness.NewRedisMirror(cfg.RedisAddr)
		if err := rm.Ping(cmd.Context()); err != nil {
			log.Warn("redis mirror unreachable, continuing without it",
				"addr", cfg.RedisAddr, "err", err)
			_ = rm.Close()
		} else {
			mirror = rm
		}
	}

	eng := engine.New(cfg, engine.Options{
		Events:    st.EventRepo(),
		Snapshots: st.SnapshotRepo(),
		Mirror:    mirror,
		Log:       log,
	})
	return eng, st, log, nil
}
