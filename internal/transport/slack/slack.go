// Package slack posts messages to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"stacknotify/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout = 10 * time.Second
	maxErrBody     = 512
)

type Config struct {
	Webhook string
	Timeout time.Duration
}

// Client is a transport.Sink for one webhook URL. It is safe for concurrent use.
type Client struct {
	webhook string
	http    *http.Client
}

var _ transport.Sink = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Webhook) == "" {
		return nil, errors.New("slack webhook is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{webhook: cfg.Webhook, http: &http.Client{Timeout: timeout}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "slack" }

func (c *Client) Send(ctx context.Context, msg transport.Message) (transport.Receipt, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return transport.Receipt{}, fmt.Errorf("encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook, bytes.NewReader(body))
	if err != nil {
		return transport.Receipt{}, &transport.DispatchError{Sink: c.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transport.Receipt{}, &transport.DispatchError{Sink: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	// Slack answers "ok" on success; read a bounded prefix for error reports.
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transport.Receipt{}, &transport.DispatchError{
			Sink:       c.Name(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	return transport.Receipt{Sink: c.Name(), StatusCode: resp.StatusCode}, nil
}
