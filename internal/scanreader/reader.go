package scanreader

import (
	"bufio"
	"os"
	"time"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/parser"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/record"
)

// Offset is the persisted File Offset Entry for one tracked log file.
type Offset struct {
	ByteOffset int64     `json:"offset"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mtime"`
}

// ScanResult is what driving the Incremental Reader over one file yields:
// the freshly parsed records and the File Offset Entry to commit on
// success. Present is false when the file could not be stat'd (treated as
// absent, per spec.md §4.B step 1) -- its offset entry should be
// garbage-collected by the caller.
type ScanResult struct {
	Records []record.UsageRecord
	Offset  Offset
	Present bool
}

// maxLineSize bounds a single log line to guard against unbounded memory
// growth on a corrupt or adversarial file.
const maxLineSize = 10 * 1024 * 1024

// Scan drives the Incremental Reader over one file given its prior
// offset entry (hadPrior is false if none is recorded yet). It follows
// the decision procedure of spec.md §4.B:
//  1. stat the file; absent -> ScanResult{Present: false}
//  2. size and mtime unchanged -> empty stream, entry unchanged
//  3. size decreased -> truncation/rotation, rescan from 0
//  4. otherwise, read from prior offset (or 0) to EOF
func Scan(path string, prior Offset, hadPrior bool) ScanResult {
	info, err := os.Stat(path)
	if err != nil {
		return ScanResult{Present: false}
	}

	current := Offset{Size: info.Size(), ModTime: info.ModTime()}

	if hadPrior && current.Size == prior.Size && current.ModTime.Equal(prior.ModTime) {
		return ScanResult{Offset: prior, Present: true}
	}

	startOffset := prior.ByteOffset
	if !hadPrior || current.Size < prior.Size {
		startOffset = 0
	}

	f, err := os.Open(path)
	if err != nil {
		// Single log file unreadable: skip it, do not advance its offset.
		fallback := prior
		if !hadPrior {
			fallback = Offset{}
		}
		return ScanResult{Offset: fallback, Present: true}
	}
	defer f.Close()

	if startOffset > 0 {
		if _, err := f.Seek(startOffset, 0); err != nil {
			startOffset = 0
			if _, err := f.Seek(0, 0); err != nil {
				return ScanResult{Offset: prior, Present: true}
			}
		}
	}

	var records []record.UsageRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if r, ok := parser.ParseLine(line); ok {
			records = append(records, r)
		}
		// Unparseable lines are silently skipped; the offset still
		// advances past them once the scanner reaches EOF.
	}
	// scanner.Err() is intentionally ignored beyond stopping iteration:
	// a partial final line (a write caught mid-flush) is expected to
	// fail decode and is lost on this run, per spec.md §4.B.

	current.ByteOffset = info.Size()
	return ScanResult{Records: records, Offset: current, Present: true}
}
