package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"stacknotify/internal/transport"
)

func TestHTMLRendersMrkdwn(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"*a* <https://x|Details>", `<b>a</b> <a href="https://x">Details</a>`},
		{
			"*my-proj* (build-123) is SUCCEEDED <https://console.aws.amazon.com/codebuild/home?region=us-east-1#/builds|Details>",
			`<b>my-proj</b> (build-123) is SUCCEEDED <a href="https://console.aws.amazon.com/codebuild/home?region=us-east-1#/builds">Details</a>`,
		},
		{"see <https://example.com>", "see https://example.com"},
		{"no links here", "no links here"},
		{"a <b", "a &lt;b"},
		{
			"Stack <https://eu-west-1.console.aws.amazon.com/cloudformation/home?region=eu-west-1&x=1|app> failed",
			`Stack <a href="https://eu-west-1.console.aws.amazon.com/cloudformation/home?region=eu-west-1&amp;x=1">app</a> failed`,
		},
	}
	for _, c := range cases {
		if got := HTML(c.in); got != c.want {
			t.Fatalf("HTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHTMLEscapesNames(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"*my_proj* (b_1) is FAILED", "<b>my_proj</b> (b_1) is FAILED"},
		{"stray * and `tick` & <tag", "stray * and `tick` &amp; &lt;tag"},
		{"❌ Stack Error at: bucket/dir_a/x*y.yaml", "❌ Stack Error at: bucket/dir_a/x*y.yaml"},
	}
	for _, c := range cases {
		if got := HTML(c.in); got != c.want {
			t.Fatalf("HTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 50)
	got := truncate(long, 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatal("short strings must be unchanged")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{ChatID: 1}); err == nil {
		t.Fatal("expected token error")
	}
	if _, err := New(Config{Token: "123:abc"}); err == nil {
		t.Fatal("expected chat id error")
	}
	s, err := New(Config{Token: "123:abc", ChatID: -100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != "telegram" {
		t.Fatalf("name = %q", s.Name())
	}
}

func TestSendUsesHTMLParseMode(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		_ = jsoniter.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":-100}}}`))
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", ChatID: -100, APIURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := transport.Message{Text: "*my_proj* (b-1) is FAILED <https://x.test/builds|Details>"}
	receipt, err := s.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.MessageID != "7" {
		t.Fatalf("receipt = %+v", receipt)
	}
	if got["parse_mode"] != "HTML" {
		t.Fatalf("parse_mode = %q", got["parse_mode"])
	}
	want := `<b>my_proj</b> (b-1) is FAILED <a href="https://x.test/builds">Details</a>`
	if got["text"] != want {
		t.Fatalf("text = %q, want %q", got["text"], want)
	}
}
