package transport

import (
	"context"
	"fmt"
	"strings"
)

// Message is a chat message in Slack's incoming-webhook shape. Other sinks
// translate it to their own wire format.
type Message struct {
	Channel   string  `json:"channel,omitempty"`
	Username  string  `json:"username,omitempty"`
	IconEmoji string  `json:"icon_emoji,omitempty"`
	Text      string  `json:"text,omitempty"`
	Blocks    []Block `json:"blocks,omitempty"`
}

type Block struct {
	Type string     `json:"type"`
	Text *BlockText `json:"text,omitempty"`
}

type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Section returns a mrkdwn section block.
func Section(text string) Block {
	return Block{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: text}}
}

// PlainText flattens a message into text: Text first, then each block on its own line.
func (m Message) PlainText() string {
	parts := make([]string, 0, 1+len(m.Blocks))
	if m.Text != "" {
		parts = append(parts, m.Text)
	}
	for _, b := range m.Blocks {
		if b.Text != nil && b.Text.Text != "" {
			parts = append(parts, b.Text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Receipt describes an accepted dispatch.
type Receipt struct {
	Sink       string
	StatusCode int
	MessageID  string
}

// Sink delivers one message per call.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// DispatchError reports a failed outbound call: a transport error or a
// non-2xx reply.
type DispatchError struct {
	Sink       string
	StatusCode int
	Body       string
	Err        error
}

func (e *DispatchError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("%s dispatch: status %d: %v", e.Sink, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s dispatch: %v", e.Sink, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s dispatch: status %d: %s", e.Sink, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s dispatch: status %d", e.Sink, e.StatusCode)
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }
