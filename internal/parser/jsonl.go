// Package parser decodes log lines emitted by the host assistant into
// Usage Records. The parser performs no I/O; it operates on bytes handed
// to it by the Incremental Reader.
package parser

import (
	"encoding/json"
	"time"

	"github.com/houzixiashanxiedaima/claude-stats-agent/internal/record"
)

// rawLine maps the JSONL structure we care about. Unknown fields are
// ignored by encoding/json's default decode behavior.
type rawLine struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
	Message   *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage *struct {
			InputTokens              *int `json:"input_tokens"`
			OutputTokens             *int `json:"output_tokens"`
			CacheCreationInputTokens int  `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int  `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// ParseLine decodes a single textual line into a Usage Record. Rejection
// is silent and never fatal: the second return value is false for an
// empty/whitespace line, malformed JSON, a missing timestamp, a missing
// message.usage block, or non-integer input_tokens/output_tokens.
func ParseLine(line []byte) (record.UsageRecord, bool) {
	trimmed := trimSpace(line)
	if len(trimmed) == 0 {
		return record.UsageRecord{}, false
	}

	var raw rawLine
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return record.UsageRecord{}, false
	}
	if raw.Timestamp == "" {
		return record.UsageRecord{}, false
	}
	if raw.Message == nil || raw.Message.Usage == nil {
		return record.UsageRecord{}, false
	}
	if raw.Message.Usage.InputTokens == nil || raw.Message.Usage.OutputTokens == nil {
		return record.UsageRecord{}, false
	}

	ts, ok := parseTimestamp(raw.Timestamp)
	if !ok {
		return record.UsageRecord{}, false
	}

	model := raw.Message.Model
	if model == "" {
		model = "unknown"
	}

	r := record.UsageRecord{
		Timestamp:           ts,
		InputTokens:         *raw.Message.Usage.InputTokens,
		OutputTokens:        *raw.Message.Usage.OutputTokens,
		CacheCreationTokens: raw.Message.Usage.CacheCreationInputTokens,
		CacheReadTokens:     raw.Message.Usage.CacheReadInputTokens,
		Model:               model,
		SessionID:           raw.SessionID,
		DayKey:              record.DayKey(ts),
	}
	r.Fingerprint = record.Fingerprint(raw.Timestamp, raw.Message.ID, raw.RequestID)
	return r, true
}

func parseTimestamp(s string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), true
	}
	if ts, err := time.Parse("2006-01-02T15:04:05.000Z", s); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
