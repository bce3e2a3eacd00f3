// Package diaglog implements the Diagnostic Logger: the only channel
// through which the engine surfaces anything about a run, since every
// error path exits 0 by design (spec.md §7).
//
// New relative to the teacher, which logs nothing (a TUI's only output
// is its screen). Grounded on go.uber.org/zap as used directly in the
// codenerd and agentic-trading pack members, writing through a small
// zapcore.WriteSyncer that rotates the target file to <name>.old at
// 10 MB per spec.md §6. Every logger is tagged with a per-run
// correlation ID from github.com/google/uuid, used directly in three
// pack members, matching the pack's convention of UUID-tagging
// long-lived or cross-process work.
package diaglog

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnableEnv names the environment variable that gates diagnostic
// logging. Any non-empty value enables it.
const EnableEnv = "CLAUDE_STATS_DEBUG"

// RotateSize is the file size at which the log is rotated to <path>.old.
const RotateSize = 10 * 1024 * 1024

// New returns a run-scoped logger. When enabled is false the returned
// logger discards everything; callers do not need to branch on it.
func New(path string, enabled bool) (*zap.Logger, error) {
	if !enabled {
		return zap.NewNop(), nil
	}

	sink := &rotatingSink{path: path}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, zapcore.DebugLevel)

	logger := zap.New(core).With(zap.String("run_id", uuid.NewString()))
	return logger, nil
}

// Enabled reports whether the environment requests diagnostic logging.
func Enabled(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	return getenv(EnableEnv) != ""
}

// rotatingSink is a zapcore.WriteSyncer that appends to path, rotating
// the current contents to path+".old" once the file would exceed
// RotateSize. It reopens the file on every Write to tolerate rotation.
type rotatingSink struct {
	path string
}

func (s *rotatingSink) Write(p []byte) (int, error) {
	if info, err := os.Stat(s.path); err == nil && info.Size()+int64(len(p)) > RotateSize {
		_ = os.Rename(s.path, s.path+".old")
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return f.Write(p)
}

func (s *rotatingSink) Sync() error {
	return nil
}
