package notifier

import (
	"errors"
	"time"

	"stacknotify/internal/event"
	"stacknotify/internal/format"
)

const (
	EventSent    = "dispatch.sent"
	EventFailed  = "dispatch.failed"
	EventSkipped = "dispatch.skipped"
)

// Config controls rendering and pacing. Zero values fall back to defaults.
type Config struct {
	Kind      event.Kind
	Channel   string
	Username  string
	IconEmoji string
	LabelMode format.LabelMode
	Label     string
	// RatePerSec paces outbound calls; 0 disables pacing.
	RatePerSec int
}

// RecordResult is the outcome of one rendered message (or of a record that
// was skipped or failed to decode).
type RecordResult struct {
	Index int
	// Part numbers messages rendered from the same record (dlqerror only).
	Part       int
	MessageID  string
	Kind       event.Kind
	Text       string
	Dispatched bool
	Skipped    bool
	SkipReason string
	StatusCode int
	Err        error
	Took       time.Duration
}

type Result struct {
	BatchID string
	Records []RecordResult
}

// Sent counts successful dispatches.
func (r Result) Sent() int {
	n := 0
	for _, rr := range r.Records {
		if rr.Dispatched && rr.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the record indexes with an error, in order, without duplicates.
func (r Result) Failed() []int {
	var out []int
	for _, rr := range r.Records {
		if rr.Err == nil {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == rr.Index {
			continue
		}
		out = append(out, rr.Index)
	}
	return out
}

// Err joins every record error (nil when all succeeded).
func (r Result) Err() error {
	var errs []error
	for _, rr := range r.Records {
		if rr.Err != nil {
			errs = append(errs, rr.Err)
		}
	}
	return errors.Join(errs...)
}

// DispatchEvent is published on the bus for every RecordResult.
// Keep it small and JSON-friendly; the audit store persists it as-is.
type DispatchEvent struct {
	BatchID    string        `json:"batch_id"`
	Index      int           `json:"index"`
	Part       int           `json:"part"`
	MessageID  string        `json:"message_id,omitempty"`
	Kind       string        `json:"kind"`
	Sink       string        `json:"sink"`
	Channel    string        `json:"channel,omitempty"`
	Text       string        `json:"text,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Took       time.Duration `json:"took"`
	At         time.Time     `json:"at"`
}
