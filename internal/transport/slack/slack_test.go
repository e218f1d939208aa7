package slack

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stacknotify/internal/transport"
)

func TestSendPostsWebhookPayload(t *testing.T) {
	var (
		gotBody   map[string]any
		gotCT     string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(Config{Webhook: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rc, err := c.Send(context.Background(), transport.Message{
		Channel:   "#builds",
		Username:  "GitFormation",
		IconEmoji: ":cloud:",
		Text:      "*x* (1) is SUCCEEDED",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if rc.StatusCode != http.StatusOK || rc.Sink != "slack" {
		t.Fatalf("unexpected receipt: %+v", rc)
	}
	if gotMethod != http.MethodPost || gotCT != "application/json" {
		t.Fatalf("method=%s content-type=%s", gotMethod, gotCT)
	}
	want := map[string]any{
		"channel":    "#builds",
		"username":   "GitFormation",
		"icon_emoji": ":cloud:",
		"text":       "*x* (1) is SUCCEEDED",
	}
	for k, v := range want {
		if gotBody[k] != v {
			t.Fatalf("%s = %v, want %v", k, gotBody[k], v)
		}
	}
	if _, ok := gotBody["blocks"]; ok {
		t.Fatal("empty blocks should be omitted")
	}
}

func TestSendNon2xxIsDispatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("invalid_payload"))
	}))
	defer srv.Close()

	c, _ := New(Config{Webhook: srv.URL})
	_, err := c.Send(context.Background(), transport.Message{Text: "x"})
	var de *transport.DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if de.StatusCode != http.StatusInternalServerError || de.Body != "invalid_payload" {
		t.Fatalf("unexpected dispatch error: %+v", de)
	}
}

func TestSendNetworkErrorIsDispatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := New(Config{Webhook: url, Timeout: time.Second})
	_, err := c.Send(context.Background(), transport.Message{Text: "x"})
	var de *transport.DispatchError
	if !errors.As(err, &de) || de.Err == nil {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewRequiresWebhook(t *testing.T) {
	if _, err := New(Config{Webhook: "  "}); err == nil {
		t.Fatal("expected error for empty webhook")
	}
}
