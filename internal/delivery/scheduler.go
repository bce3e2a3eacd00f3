// Package delivery implements the Delivery Scheduler: batching and
// sending Usage Records under a strict wall-clock budget, with no retry.
//
// Grounded on the teacher's internal/api/usage.go FetchUsage: a
// net/http.Client constructed with an explicit Timeout, one request,
// explicit status-code check, encoding/json body handling. The teacher's
// function is a single authenticated GET; the scheduler generalizes this
// to a batched POST loop under a wall-clock budget.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/record"
)

const (
	// BatchSize is the fixed number of records sent per request.
	BatchSize = 200
	// Budget is the wall-clock limit measured from scheduler entry.
	Budget = 10 * time.Second
	// RequestTimeout bounds a single batch's HTTP round trip.
	RequestTimeout = 5 * time.Second
)

// submitBody is the wire shape POSTed to {serverUrl}/api/usage/submit.
type submitBody struct {
	Username string                `json:"username"`
	Usage    []record.UsageRecord  `json:"usage"`
}

// Scheduler sends batches of records to a remote aggregation server.
type Scheduler struct {
	ServerURL string
	Username  string
	Client    *http.Client

	// now is overridable for deterministic budget tests.
	now func() time.Time
}

// New returns a Scheduler targeting serverURL on behalf of username.
func New(serverURL, username string) *Scheduler {
	return &Scheduler{
		ServerURL: serverURL,
		Username:  username,
		Client:    &http.Client{Timeout: RequestTimeout},
		now:       time.Now,
	}
}

// Deliver attempts to send records in fixed-size batches, strictly in
// input order, until the wall-clock Budget is exhausted or a batch fails.
// It returns the count sent and the contiguous unsent tail (including a
// failed batch in full) -- never a partial batch, per spec.md §4.G.
func (s *Scheduler) Deliver(ctx context.Context, records []record.UsageRecord) (sent int, unsent []record.UsageRecord) {
	start := s.nowFn()
	i := 0
	for i < len(records) {
		if s.nowFn().Sub(start) >= Budget {
			return sent, records[i:]
		}

		end := i + BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		if err := s.sendBatch(ctx, batch); err != nil {
			return sent, records[i:]
		}

		sent += len(batch)
		i = end
	}
	return sent, nil
}

func (s *Scheduler) nowFn() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Scheduler) sendBatch(ctx context.Context, batch []record.UsageRecord) error {
	body := submitBody{Username: s.Username, Usage: batch}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.ServerURL+"/api/usage/submit", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("submit usage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit usage: HTTP %d", resp.StatusCode)
	}
	return nil
}
