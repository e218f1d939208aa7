// Package telegram delivers notifications to a Telegram chat through the Bot API.
//
// Messages are authored in Slack mrkdwn; HTML() renders them for Telegram's
// HTML parse mode so the same formatter output works for both sinks.
package telegram

import (
	"context"
	"errors"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"stacknotify/internal/transport"
)

const textLimit = 4000

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides the Bot API base URL (self-hosted bot API, tests).
	APIURL  string
	Timeout time.Duration
}

type Sink struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
}

var _ transport.Sink = (*Sink)(nil)

func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// Offline: send-only sink, skip the getMe round-trip at construction.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Sink{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID}, nil
}

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) Send(ctx context.Context, msg transport.Message) (transport.Receipt, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return transport.Receipt{}, &transport.DispatchError{Sink: s.Name(), Err: ctx.Err()}
		default:
		}
	}

	// truncate before rendering so no tag is cut in half
	text := HTML(truncate(msg.PlainText(), textLimit))
	m, err := s.bot.Send(s.chat, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              s.threadID,
	})
	if err != nil {
		de := &transport.DispatchError{Sink: s.Name(), Err: err}
		var te *tele.Error
		if errors.As(err, &te) {
			de.StatusCode = te.Code
		}
		return transport.Receipt{}, de
	}
	return transport.Receipt{Sink: s.Name(), MessageID: strconv.Itoa(m.ID)}, nil
}

// mrkdwnRe matches, in order: <url|label>, <url>, *bold*.
var mrkdwnRe = regexp.MustCompile(`<([^<>|]+)\|([^<>]+)>|<((?:https?|mailto):[^<>|]+)>|\*([^*\n]+)\*`)

// HTML converts Slack mrkdwn to Telegram HTML. Links and bold spans become
// tags; every other character is escaped, so names with _ * or < are sent
// as written.
func HTML(s string) string {
	var b strings.Builder
	last := 0
	for _, m := range mrkdwnRe.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:m[0]]))
		switch {
		case m[2] >= 0:
			b.WriteString(`<a href="` + html.EscapeString(s[m[2]:m[3]]) + `">` + html.EscapeString(s[m[4]:m[5]]) + "</a>")
		case m[6] >= 0:
			b.WriteString(html.EscapeString(s[m[6]:m[7]]))
		default:
			b.WriteString("<b>" + html.EscapeString(s[m[8]:m[9]]) + "</b>")
		}
		last = m[1]
	}
	b.WriteString(html.EscapeString(s[last:]))
	return b.String()
}

func truncate(s string, maxN int) string {
	rs := []rune(s)
	if maxN <= 0 || len(rs) <= maxN {
		return s
	}
	return string(rs[:maxN-3]) + "..."
}
