package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	jsoniter "github.com/json-iterator/go"

	"stacknotify/internal/notifier"
	"stacknotify/internal/transport"
	logx "stacknotify/pkg/logx"
)

type fakeSQS struct {
	mu       sync.Mutex
	messages []sqstypes.Message
	deleted  []string
	recvErr  error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	n := int(in.MaxNumberOfMessages)
	if n > len(f.messages) {
		n = len(f.messages)
	}
	out := f.messages[:n]
	f.messages = f.messages[n:]
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type sink struct{ fail bool }

func (s *sink) Name() string { return "test" }

func (s *sink) Send(ctx context.Context, msg transport.Message) (transport.Receipt, error) {
	if s.fail {
		return transport.Receipt{}, &transport.DispatchError{Sink: "test", StatusCode: 503}
	}
	return transport.Receipt{Sink: "test", StatusCode: 200}, nil
}

const goodPayload = `{"id":"b-1","region":"us-east-1","detail":{"build-status":"SUCCEEDED","project-name":"api"}}`

func snsBody(t *testing.T, message string) string {
	t.Helper()
	b, err := jsoniter.Marshal(map[string]string{"Type": "Notification", "MessageId": "n-1", "Message": message})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func msg(id, body string) sqstypes.Message {
	return sqstypes.Message{MessageId: aws.String(id), ReceiptHandle: aws.String("rh-" + id), Body: aws.String(body)}
}

func newPoller(t *testing.T, client Client, failSink, raw bool) *Poller {
	t.Helper()
	n, err := notifier.New(notifier.Config{}, &sink{fail: failSink})
	if err != nil {
		t.Fatalf("notifier.New: %v", err)
	}
	p, err := New(Config{URL: "https://sqs.us-east-1.amazonaws.com/1/q", RawDelivery: raw}, client, n, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestDeleteOnSuccessAndParseError(t *testing.T) {
	fake := &fakeSQS{messages: []sqstypes.Message{
		msg("ok", snsBody(t, goodPayload)),
		msg("bad", snsBody(t, "not json")),
		msg("junk", "{"),
	}}
	p := newPoller(t, fake, false, false)
	n, err := p.PollOnce(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("PollOnce = %d, %v", n, err)
	}
	want := []string{"rh-ok", "rh-bad", "rh-junk"}
	if len(fake.deleted) != len(want) {
		t.Fatalf("deleted = %v", fake.deleted)
	}
	for i := range want {
		if fake.deleted[i] != want[i] {
			t.Fatalf("deleted = %v, want %v", fake.deleted, want)
		}
	}
}

func TestKeepOnDispatchError(t *testing.T) {
	fake := &fakeSQS{}
	p := newPoller(t, fake, true, false)
	if got := p.Process(context.Background(), msg("m", snsBody(t, goodPayload))); got != Retained {
		t.Fatalf("outcome = %v, want Retained", got)
	}
	if len(fake.deleted) != 0 {
		t.Fatalf("deleted = %v", fake.deleted)
	}
}

func TestRawDelivery(t *testing.T) {
	fake := &fakeSQS{}
	p := newPoller(t, fake, false, true)
	if got := p.Process(context.Background(), msg("raw", goodPayload)); got != Delivered {
		t.Fatalf("outcome = %v, want Delivered", got)
	}
	if len(fake.deleted) != 1 {
		t.Fatalf("deleted = %v", fake.deleted)
	}
}

func TestRunReturnsReceiveError(t *testing.T) {
	fake := &fakeSQS{recvErr: errors.New("throttled")}
	p := newPoller(t, fake, false, false)
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected receive error")
	}
}

func TestNewDefaults(t *testing.T) {
	p := newPoller(t, &fakeSQS{}, false, false)
	if p.cfg.WaitSeconds != 20 || p.cfg.MaxMessages != 10 {
		t.Fatalf("cfg = %+v", p.cfg)
	}
	if _, err := New(Config{}, &fakeSQS{}, nil, logx.Nop()); err == nil {
		t.Fatal("expected missing url error")
	}
}
