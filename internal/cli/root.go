package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zsprackett/usagebar/internal/applog"
	"github.com/zsprackett/usagebar/internal/claudeusage"
	"github.com/zsprackett/usagebar/internal/config"
	"github.com/zsprackett/usagebar/internal/db"
	"github.com/zsprackett/usagebar/internal/ptyrun"
	"github.com/zsprackett/usagebar/internal/usagepoller"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	cfgFile string
	dbFile  string
)

var rootCmd = &cobra.Command{
	Use:   "usagebar",
	Short: "Claude Code quota indicator",
	Long: `usagebar runs "claude /usage" on a timer inside a pseudo-terminal, reads the
session and weekly quota percentages off the screen, and shows them in a
terminal status view, a small web API and Prometheus metrics.`,
	SilenceUsage: true,
	RunE:         runApp,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.usagebar/config.json)")
	rootCmd.PersistentFlags().StringVar(&dbFile, "db", "", "state database (default: ~/.usagebar/state.db)")
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig falls back to defaults when the file is unreadable.
func loadConfig(errOut io.Writer) config.Config {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(errOut, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}
	return cfg
}

// initLogger logs to the rotating file, or to stderr for one-shot commands
// whose stdout carries their result.
func initLogger(cfg config.Config, errOut io.Writer, toStderr bool) (*slog.Logger, io.Closer) {
	logger, closer, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Stderr:   toStderr,
	})
	if err != nil {
		fmt.Fprintf(errOut, "warning: could not init log file: %v\n", err)
		return slog.Default(), nopCloser{}
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openDB() (*db.DB, error) {
	path := dbFile
	if path == "" {
		path = config.DBPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func newRunner(d config.Durations, logger *slog.Logger) *ptyrun.Runner {
	r := ptyrun.New(logger)
	r.Timeout = d.Timeout
	r.StallTimeout = d.StallTimeout
	return r
}

func newPoller(cfg config.Config, d config.Durations, dirs usagepoller.DirStore, opts usagepoller.Options, logger *slog.Logger) *usagepoller.Poller {
	client := claudeusage.NewClient(newRunner(d, logger), logger)
	opts.Interval = d.PollInterval
	opts.AlertThreshold = cfg.AlertThreshold
	return usagepoller.New(client, dirs, opts, logger)
}

// checkBinary returns an actionable error when claude cannot be found.
func checkBinary() error {
	if _, err := claudeusage.FindBinary(); err != nil {
		if errors.Is(err, claudeusage.ErrBinaryNotFound) {
			home, _ := os.UserHomeDir()
			return fmt.Errorf("claude CLI not found. Install Claude Code and sign in once, "+
				"then make sure %s is in one of: %s",
				strings.Join(claudeusage.BinaryNames, " or "),
				strings.Join(claudeusage.SearchDirs(home), ", "))
		}
		return err
	}
	return nil
}
