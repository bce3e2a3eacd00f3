// Package scanreader implements the Incremental Reader: it reads only the
// newly appended region of each discovered log file and tracks the byte
// offsets needed to do that on the next run.
//
// Grounded on the teacher's internal/watcher/watcher.go offset-tracking
// map and internal/parser/scan.go directory walk, merged into one
// component. The watcher's long-lived fsnotify + polling loop is dropped
// (the agent is a short-lived, one-shot process with no persistent event
// loop to deliver fsnotify events into); its core idea -- an offset map
// consulted before reading, and a byte-range read from the recorded
// offset -- is kept and promoted to the persisted File Offset Entry.
package scanreader

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultRootsEnv names the environment variable that, if set, lists
// comma-separated root directories to scan.
const DefaultRootsEnv = "CLAUDE_STATS_LOG_ROOTS"

// Roots resolves the set of root directories to scan, per spec.md §6:
// the environment variable wins if set; otherwise fall back to
// $XDG_CONFIG_HOME/claude and $HOME/.claude. Only roots whose projects/
// subdirectory exists are returned.
func Roots(getenv func(string) string) []string {
	if getenv == nil {
		getenv = os.Getenv
	}

	var candidates []string
	if raw := getenv(DefaultRootsEnv); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				candidates = append(candidates, part)
			}
		}
	} else {
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			candidates = append(candidates, filepath.Join(xdg, "claude"))
		}
		if home := getenv("HOME"); home != "" {
			candidates = append(candidates, filepath.Join(home, ".claude"))
		}
	}

	var roots []string
	for _, c := range candidates {
		if info, err := os.Stat(filepath.Join(c, "projects")); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}

// DiscoverFiles walks roots/projects recursively and returns the absolute
// paths of every file with a .jsonl suffix.
func DiscoverFiles(roots []string) []string {
	var files []string
	for _, root := range roots {
		projects := filepath.Join(root, "projects")
		_ = filepath.Walk(projects, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if filepath.Ext(path) != ".jsonl" {
				return nil
			}
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				abs = path
			}
			files = append(files, abs)
			return nil
		})
	}
	return files
}
