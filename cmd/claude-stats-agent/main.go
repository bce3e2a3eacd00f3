// Command claude-stats-agent runs one collection-and-delivery pass: it
// reads the Agent Config, and if enabled, scans newly appended usage log
// lines, deduplicates and delivers them, and persists state for the next
// invocation. It is meant to be triggered periodically (a shell hook, a
// cron entry, a wrapper around the host CLI) rather than run as a daemon.
//
// Grounded on the teacher's cmd/claude-smi/main.go flag parsing and
// top-level wiring; runNoTUI's linear pipeline becomes Orchestrator.Run.
// Every exit path returns 0, per spec.md §7 -- the diagnostic log is the
// only channel this command uses to report anything.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/config"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/diaglog"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/orchestrator"
)

const runTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to stats-config.json")
	flag.Parse()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	stateDir := filepath.Join(home, ".claude")

	logPath := filepath.Join(stateDir, "stats-debug.log")
	logger, err := diaglog.New(logPath, diaglog.Enabled(nil))
	if err != nil {
		// Logging itself failed to initialize; there is nowhere left to
		// report that, so continue with a nop logger (spec.md §7).
		logger, _ = diaglog.New("", false)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Sugar().Warnw("config load failed, treating as absent", "error", err)
		cfg = config.Config{}
	}

	paths := orchestrator.Paths{
		StatePath:  filepath.Join(stateDir, "stats-state.json"),
		BufferPath: filepath.Join(stateDir, "stats-state.buffer.json"),
		LockPath:   filepath.Join(stateDir, "stats.lock"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	o := orchestrator.New(cfg, paths, nil, logger)
	o.Run(ctx)

	os.Exit(0)
}
