package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"stacknotify/internal/event"
	"stacknotify/internal/storage"
	"stacknotify/internal/transport"
)

type captureSink struct {
	mu   sync.Mutex
	sent []transport.Message
	fail bool
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Send(ctx context.Context, msg transport.Message) (transport.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	if c.fail {
		return transport.Receipt{}, &transport.DispatchError{Sink: "capture", StatusCode: 500}
	}
	return transport.Receipt{Sink: "capture", StatusCode: 200}, nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "stacknotify.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func codebuildBatch() event.Batch {
	return event.Batch{Records: []events.SNSEventRecord{{
		SNS: events.SNSEntity{
			MessageID: "m-1",
			Message:   `{"id":"b-1","region":"eu-west-1","detail":{"build-status":"FAILED","project-name":"api"}}`,
		},
	}}}
}

func TestNewRequiresWebhook(t *testing.T) {
	t.Setenv("WEBHOOK", "")
	if _, err := New("", WithOutput(&bytes.Buffer{})); err == nil {
		t.Fatal("expected config error")
	}
}

func TestHandleAuditsDispatches(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
slack:
  webhook: https://hooks.slack.com/services/T/B/X
  channel: "#builds"
storage:
  driver: sqlite
  path: `+filepath.Join(dir, "audit.db")+`
`)
	sink := &captureSink{}
	a, err := New(path, WithSink(sink), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := a.Handle(ctx, codebuildBatch())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Sent() != 1 || len(sink.sent) != 1 {
		t.Fatalf("sent = %d, sink saw %d", res.Sent(), len(sink.sent))
	}
	if sink.sent[0].Channel != "#builds" {
		t.Fatalf("channel = %q", sink.sent[0].Channel)
	}

	var recs []storage.DispatchRecord
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err = a.Store().Recent(ctx, 10)
		if err == nil && len(recs) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(recs) != 1 {
		t.Fatalf("audit records = %d (err %v)", len(recs), err)
	}
	if recs[0].Outcome != storage.OutcomeSent || recs[0].Sink != "capture" || recs[0].BatchID != res.BatchID {
		t.Fatalf("unexpected audit record: %+v", recs[0])
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestHandleAuditsWithoutStart(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
slack:
  webhook: https://hooks.slack.com/services/T/B/X
  channel: "#builds"
storage:
  driver: file
  path: `+filepath.Join(dir, "audit.json")+`
`)
	a, err := New(path, WithSink(&captureSink{}), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	res, err := a.Handle(context.Background(), codebuildBatch())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// no Start: the records must already be written when Handle returns
	recs, err := a.Store().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 || recs[0].BatchID != res.BatchID || recs[0].Outcome != storage.OutcomeSent {
		t.Fatalf("audit records = %+v", recs)
	}
}

func TestHandleReportsDispatchError(t *testing.T) {
	t.Setenv("WEBHOOK", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("CHANNEL", "#builds")
	sink := &captureSink{fail: true}
	a, err := New("", WithSink(sink), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	_, err = a.Handle(context.Background(), codebuildBatch())
	var de *transport.DispatchError
	if !errors.As(err, &de) || de.StatusCode != 500 {
		t.Fatalf("err = %v", err)
	}
}

func TestReloadSwapsNotifier(t *testing.T) {
	t.Setenv("WEBHOOK", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("CHANNEL", "#builds")
	a, err := New("", WithSink(&captureSink{}), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	before := a.Notifier()
	next := *a.Config()
	next.Slack.Channel = "#other"
	a.apply(a.Config(), &next)
	after := a.Notifier()
	if before == after {
		t.Fatal("notifier was not replaced")
	}
	if after.Config().Channel != "#other" {
		t.Fatalf("channel = %q", after.Config().Channel)
	}
}
