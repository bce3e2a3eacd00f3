// Package record defines the Usage Record value object shipped by the
// collection-and-delivery engine.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// UsageRecord is one parsed, fingerprinted observation of a host-model
// interaction. Records are immutable; identity is Fingerprint.
type UsageRecord struct {
	Timestamp           time.Time `json:"timestamp"`
	InputTokens         int       `json:"input_tokens"`
	OutputTokens        int       `json:"output_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens"`
	Model               string    `json:"model"`
	SessionID           string    `json:"session_id,omitempty"`
	Fingerprint         string    `json:"fingerprint"`
	DayKey              string    `json:"day_key"`
}

// TotalTokens returns the sum of all token counters.
func (r UsageRecord) TotalTokens() int {
	return r.InputTokens + r.OutputTokens + r.CacheCreationTokens + r.CacheReadTokens
}

// Fingerprint computes the dedup identity for a record: SHA-256 over
// timestamp, messageID and requestID (missing fields contribute the empty
// string). It is deterministic and stable; changing it is a breaking
// change to dedup, per spec.
func Fingerprint(timestamp, messageID, requestID string) string {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(messageID))
	h.Write([]byte(requestID))
	return hex.EncodeToString(h.Sum(nil))
}

// DayKey derives the UTC calendar-date dedup bucket from a timestamp.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
