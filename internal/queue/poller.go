package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"stacknotify/internal/event"
	"stacknotify/internal/notifier"
	logx "stacknotify/pkg/logx"
)

// Client is the subset of *sqs.Client the poller uses.
type Client interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Handler interface {
	Handle(ctx context.Context, batch event.Batch) (notifier.Result, error)
}

type Config struct {
	URL         string
	WaitSeconds int32
	MaxMessages int32
	// RawDelivery means bodies are the bare payload, not an SNS envelope.
	RawDelivery bool
}

// Outcome of one message.
type Outcome int

const (
	Delivered Outcome = iota
	// Dropped messages are deleted without a successful dispatch (poison payloads, non-notifications).
	Dropped
	// Retained messages stay on the queue and become visible again after the visibility timeout.
	Retained
)

type Poller struct {
	cfg    Config
	client Client
	h      Handler
	log    logx.Logger
}

// NewSQSClient builds a client from the default AWS credential chain.
func NewSQSClient(ctx context.Context) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func New(cfg Config, client Client, h Handler, log logx.Logger) (*Poller, error) {
	if cfg.URL == "" {
		return nil, errors.New("queue.url is required")
	}
	if client == nil || h == nil {
		return nil, errors.New("queue: client and handler are required")
	}
	if cfg.WaitSeconds <= 0 || cfg.WaitSeconds > 20 {
		cfg.WaitSeconds = 20
	}
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{cfg: cfg, client: client, h: h, log: log}, nil
}

// Run long-polls until ctx is canceled. A receive error is returned so the
// caller's restart policy can back off.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("queue poller started", logx.String("queue", p.cfg.URL), logx.Bool("raw_delivery", p.cfg.RawDelivery))
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// PollOnce performs one receive call and processes every returned message in order.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.cfg.URL),
		MaxNumberOfMessages: p.cfg.MaxMessages,
		WaitTimeSeconds:     p.cfg.WaitSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("receive: %w", err)
	}
	for _, m := range out.Messages {
		if ctx.Err() != nil {
			break
		}
		p.Process(ctx, m)
	}
	return len(out.Messages), nil
}

// Process handles one message and deletes it unless the dispatch should be retried.
func (p *Poller) Process(ctx context.Context, m sqstypes.Message) Outcome {
	id := aws.ToString(m.MessageId)
	log := p.log.With(logx.String("sqs_message_id", id))

	outcome := p.handle(ctx, log, m)
	if outcome == Retained {
		return outcome
	}
	if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.cfg.URL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		log.Warn("delete message failed", logx.Err(err))
	}
	return outcome
}

func (p *Poller) handle(ctx context.Context, log logx.Logger, m sqstypes.Message) Outcome {
	body := aws.ToString(m.Body)

	var rec event.Record
	if p.cfg.RawDelivery {
		rec = event.Envelope{
			Type:      event.EnvelopeNotification,
			MessageID: aws.ToString(m.MessageId),
			Message:   body,
		}.Record()
	} else {
		env, err := event.DecodeEnvelope([]byte(body))
		if err != nil {
			log.Error("dropping message: invalid sns envelope", logx.Err(err))
			return Dropped
		}
		if env.Type != event.EnvelopeNotification {
			log.Warn("dropping message: not a notification", logx.String("type", env.Type))
			return Dropped
		}
		rec = env.Record()
	}

	_, err := p.h.Handle(ctx, event.Single(rec))
	if err == nil {
		return Delivered
	}
	var pe *event.PayloadParseError
	if errors.As(err, &pe) {
		log.Error("dropping message: payload parse error", logx.Err(err))
		return Dropped
	}
	log.Warn("dispatch failed; message left for redelivery", logx.Err(err))
	return Retained
}
