package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines at <path>.dispatch.jsonl
//   - "sqlite": SQLite database file at path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Outcome values for DispatchRecord.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// DispatchRecord is one audited dispatch outcome.
// Keep it compact and schema-stable.
type DispatchRecord struct {
	At         time.Time `json:"at"`
	BatchID    string    `json:"batch_id"`
	Index      int       `json:"index"`
	Part       int       `json:"part,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Kind       string    `json:"kind"`
	Sink       string    `json:"sink"`
	Channel    string    `json:"channel,omitempty"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	TookMS     int64     `json:"took_ms"`
	Text       string    `json:"text,omitempty"`
}
