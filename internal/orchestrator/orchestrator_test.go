package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/config"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/lock"
	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/state"
)

func testPaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		StatePath:  filepath.Join(dir, "stats-state.json"),
		BufferPath: filepath.Join(dir, "stats-state.buffer.json"),
		LockPath:   filepath.Join(dir, "stats.lock"),
	}
}

func writeLogFile(t *testing.T, root string, lines ...string) string {
	t.Helper()
	projectsDir := filepath.Join(root, "projects", "proj")
	if err := os.MkdirAll(projectsDir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(projectsDir, "log.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fixtureTimestamp stamps fixture lines with the current time, so their day
// key stays inside the dedup retention window that commit prunes to.
var fixtureTimestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

func line(reqID string) string {
	return `{"timestamp":"` + fixtureTimestamp + `","requestId":"` + reqID + `","message":{"id":"msg_` + reqID + `","model":"opus","usage":{"input_tokens":10,"output_tokens":5}}}`
}

type captureServer struct {
	mu      sync.Mutex
	batches [][]json.RawMessage
	status  int32
}

func newCaptureServer(status int) *captureServer {
	s := &captureServer{}
	atomic.StoreInt32(&s.status, int32(status))
	return s
}

func (s *captureServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Usage []json.RawMessage `json:"usage"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.batches = append(s.batches, body.Usage)
		s.mu.Unlock()
		w.WriteHeader(int(atomic.LoadInt32(&s.status)))
	}
}

func (s *captureServer) totalRecords() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestOrchestrator_ColdStartThreeLines(t *testing.T) {
	root := t.TempDir()
	writeLogFile(t, root, line("r1"), line("r2"), line("r3"))

	srv := newCaptureServer(http.StatusOK)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: ts.URL, Enabled: true}
	o := New(cfg, paths, []string{root}, nil)
	o.Run(context.Background())

	if srv.totalRecords() != 3 {
		t.Fatalf("server received %d records, want 3", srv.totalRecords())
	}

	st := state.NewStore(paths.StatePath).Load()
	if st.LastRunTimestamp == 0 {
		t.Error("expected lastRunTimestamp to be set")
	}
	total := 0
	for _, fps := range st.RecentHashes {
		total += len(fps)
	}
	if total != 3 {
		t.Errorf("dedup index has %d fingerprints, want 3", total)
	}

	buf := state.NewBufferStore(paths.BufferPath).Load()
	if len(buf.Records) != 0 {
		t.Errorf("expected no pending buffer, got %d records", len(buf.Records))
	}
}

func TestOrchestrator_SecondRunOnlyNewLine(t *testing.T) {
	root := t.TempDir()
	logPath := writeLogFile(t, root, line("r1"), line("r2"), line("r3"))

	srv := newCaptureServer(http.StatusOK)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: ts.URL, Enabled: true}

	o1 := New(cfg, paths, []string{root}, nil)
	past := time.Now().Add(-time.Hour)
	o1.now = func() time.Time { return past }
	o1.Run(context.Background())

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(line("r4") + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	o2 := New(cfg, paths, []string{root}, nil)
	o2.now = func() time.Time { return time.Now() }
	o2.Run(context.Background())

	if srv.totalRecords() != 4 {
		t.Fatalf("server received %d records across both runs, want 4", srv.totalRecords())
	}
	if len(srv.batches) != 2 {
		t.Fatalf("got %d batches, want 2 separate runs' worth", len(srv.batches))
	}
	if len(srv.batches[1]) != 1 {
		t.Errorf("second run sent %d records, want 1 (only the appended line)", len(srv.batches[1]))
	}
}

func TestOrchestrator_Truncation(t *testing.T) {
	root := t.TempDir()
	logPath := writeLogFile(t, root, line("r1"), line("r2"), line("r3"))

	srv := newCaptureServer(http.StatusOK)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: ts.URL, Enabled: true}

	o1 := New(cfg, paths, []string{root}, nil)
	past := time.Now().Add(-time.Hour)
	o1.now = func() time.Time { return past }
	o1.Run(context.Background())

	// Rewrite the file with two new lines: fewer bytes than the three
	// lines scanned before, so the reader sees a truncation.
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(logPath, []byte(line("r5")+"\n"+line("r6")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	o2 := New(cfg, paths, []string{root}, nil)
	o2.now = func() time.Time { return time.Now() }
	o2.Run(context.Background())

	if srv.totalRecords() != 5 {
		t.Fatalf("server received %d total records, want 5 (3 + 2 after truncation rescan)", srv.totalRecords())
	}
}

func TestOrchestrator_ServerDownThenUp(t *testing.T) {
	root := t.TempDir()
	writeLogFile(t, root, line("r1"), line("r2"))

	var up int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&up) == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: srv.URL, Enabled: true}

	o1 := New(cfg, paths, []string{root}, nil)
	past := time.Now().Add(-time.Hour)
	o1.now = func() time.Time { return past }
	o1.Run(context.Background())

	buf := state.NewBufferStore(paths.BufferPath).Load()
	if len(buf.Records) != 2 {
		t.Fatalf("expected 2 records buffered after server-down run, got %d", len(buf.Records))
	}

	atomic.StoreInt32(&up, 1)
	o2 := New(cfg, paths, []string{root}, nil)
	o2.now = func() time.Time { return time.Now() }
	o2.Run(context.Background())

	buf2 := state.NewBufferStore(paths.BufferPath).Load()
	if len(buf2.Records) != 0 {
		t.Errorf("expected buffer drained after server recovers, got %d records", len(buf2.Records))
	}
}

func TestOrchestrator_ConcurrentTriggerLosesToLock(t *testing.T) {
	root := t.TempDir()
	writeLogFile(t, root, line("r1"))

	srv := newCaptureServer(http.StatusOK)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: ts.URL, Enabled: true}

	holder := lock.New(paths.LockPath)
	if !holder.Acquire() {
		t.Fatal("expected to acquire lock for test setup")
	}
	defer holder.Release()

	o := New(cfg, paths, []string{root}, nil)
	o.Run(context.Background())

	if srv.totalRecords() != 0 {
		t.Errorf("expected contending run to send nothing while lock is held, got %d records", srv.totalRecords())
	}
}

func TestOrchestrator_DisabledConfigExitsImmediately(t *testing.T) {
	root := t.TempDir()
	writeLogFile(t, root, line("r1"))

	srv := newCaptureServer(http.StatusOK)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: ts.URL, Enabled: false}

	o := New(cfg, paths, []string{root}, nil)
	o.Run(context.Background())

	if srv.totalRecords() != 0 {
		t.Error("expected disabled config to send nothing")
	}
}

func TestOrchestrator_EmptyRunStillUpdatesTimestamp(t *testing.T) {
	root := t.TempDir() // no log files at all

	srv := newCaptureServer(http.StatusOK)
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	paths := testPaths(t)
	cfg := config.Config{Username: "alice", ServerURL: ts.URL, Enabled: true}

	o := New(cfg, paths, []string{root}, nil)
	o.Run(context.Background())

	st := state.NewStore(paths.StatePath).Load()
	if st.LastRunTimestamp == 0 {
		t.Error("expected lastRunTimestamp to be set even for a no-op run")
	}
	if srv.totalRecords() != 0 {
		t.Error("expected no HTTP calls for an empty run")
	}
}
