package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/engine"
	"github.com/loglens/loglens/internal/server"
	"github.com/loglens/loglens/internal/util"
)

var (
	// Logging related
	debug   bool
	logFile string

	// Data path
	dataDir string

	// Engine tuning
	port           int
	debounce       time.Duration
	rescanInterval time.Duration
	queueSize      int

	// Config file
	configPath string

	rootCmd = &cobra.Command{
		Use:   "loglens [flags]",
		Short: "Live viewer engine for agent conversation logs",
		Long: `loglens watches a directory of JSONL conversation logs, ingests new
entries as they are written, and serves them over HTTP with a live
server-sent-events stream.

Examples:
  loglens                                  # Serve ~/.claude/projects on :8080
  loglens --dir /path/to/logs --port 9090  # Serve another directory
  loglens sessions webapp                  # List sessions of one project
  loglens export webapp sess-1             # Print a markdown transcript`,
		RunE: runServe,
	}
)

const defaultLogFile = "~/.loglens/logs/app.log"

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "",
		"Log directory path (default ~/.claude/projects)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default ~/.loglens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (default "+defaultLogFile+")")

	rootCmd.Flags().IntVar(&port, "port", 0,
		"HTTP listen port")
	rootCmd.Flags().DurationVar(&debounce, "debounce", 0,
		"Coalescing window for file write bursts")
	rootCmd.Flags().DurationVar(&rescanInterval, "rescan-interval", 0,
		"Period of the fallback directory rescan")
	rootCmd.Flags().IntVar(&queueSize, "queue-size", 0,
		"Per-subscriber event queue size")
}

// loadConfig layers the config file under any flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	} else {
		path = expandPath(path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if dataDir != "" {
		cfg.Root = dataDir
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("debounce") {
		cfg.DebounceWindow = debounce
	}
	if cmd.Flags().Changed("rescan-interval") {
		cfg.RescanInterval = rescanInterval
	}
	if cmd.Flags().Changed("queue-size") {
		cfg.QueueSize = queueSize
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile
	}

	cfg.Root = expandPath(cfg.Root)
	cfg.LogFile = expandPath(cfg.LogFile)
	return cfg, nil
}

func initLogging(cfg config.Config) error {
	if err := ensureDir(filepath.Dir(cfg.LogFile)); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	util.InitLogger(cfg.LogLevel, cfg.LogFile, debug)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Root); err != nil {
		return fmt.Errorf("log directory %s: %w", cfg.Root, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := engine.New(cfg)
	srv := server.New(e)
	addr := fmt.Sprintf(":%d", cfg.Port)

	util.LogInfof("serving %s on %s", cfg.Root, addr)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx, addr) })
	return g.Wait()
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
