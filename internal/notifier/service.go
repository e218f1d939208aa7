package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stacknotify/internal/event"
	"stacknotify/internal/eventbus"
	"stacknotify/internal/format"
	"stacknotify/internal/transport"
	logx "stacknotify/pkg/logx"
)

// Notifier renders and dispatches notification batches.
//
// It is immutable after New and safe for concurrent use; concurrent Handle
// calls share only the rate limiter.
type Notifier struct {
	cfg     Config
	opts    format.Options
	sink    transport.Sink
	log     logx.Logger
	bus     eventbus.Bus
	limiter *rate.Limiter
	newID   func() string
}

type Option func(*Notifier)

func WithLogger(log logx.Logger) Option { return func(n *Notifier) { n.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(n *Notifier) { n.bus = bus } }

func New(cfg Config, sink transport.Sink, opts ...Option) (*Notifier, error) {
	if sink == nil {
		return nil, errors.New("notifier: sink is required")
	}
	kind, err := event.ParseKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}
	cfg.Kind = kind
	if cfg.LabelMode == "" {
		cfg.LabelMode = format.LabelFixed
	}
	if cfg.Label == "" {
		cfg.Label = format.DefaultLabel
	}
	if cfg.Username == "" {
		cfg.Username = format.DefaultUsername
		if kind != event.KindCodeBuild {
			cfg.Username = format.DefaultStackUsername
		}
	}
	if cfg.IconEmoji == "" {
		cfg.IconEmoji = format.DefaultIconEmoji
	}
	if cfg.RatePerSec < 0 {
		cfg.RatePerSec = 0
	}

	n := &Notifier{
		cfg:   cfg,
		sink:  sink,
		newID: uuid.NewString,
		opts: format.Options{
			Channel:   cfg.Channel,
			Username:  cfg.Username,
			IconEmoji: cfg.IconEmoji,
			LabelMode: cfg.LabelMode,
			Label:     cfg.Label,
		},
	}
	if cfg.RatePerSec > 0 {
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	for _, o := range opts {
		o(n)
	}
	if n.log.IsZero() {
		n.log = logx.Nop()
	}
	n.log = n.log.With(logx.String("kind", string(kind)))
	return n, nil
}

func (n *Notifier) Config() Config { return n.cfg }

// Handle processes the batch in record order.
//
// The returned error is a *event.PayloadParseError when a record could not be
// decoded (processing stops there), ctx.Err() when the context ends the
// batch early, or the joined dispatch errors.
func (n *Notifier) Handle(ctx context.Context, batch event.Batch) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	res := Result{BatchID: n.newID(), Records: make([]RecordResult, 0, len(batch.Records))}
	log := n.log.With(logx.String("batch", res.BatchID))
	start := time.Now()

	for i, rec := range batch.Records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		msgs, skip, err := n.render(batch, i)
		if err != nil {
			rr := RecordResult{Index: i, MessageID: rec.SNS.MessageID, Kind: n.cfg.Kind, Err: err}
			res.Records = append(res.Records, rr)
			n.publish(res.BatchID, rr, EventFailed)
			log.Error("record payload rejected; batch aborted", logx.Int("index", i), logx.String("message_id", rec.SNS.MessageID), logx.Err(err))
			return res, err
		}
		if skip != "" {
			rr := RecordResult{Index: i, MessageID: rec.SNS.MessageID, Kind: n.cfg.Kind, Skipped: true, SkipReason: skip}
			res.Records = append(res.Records, rr)
			n.publish(res.BatchID, rr, EventSkipped)
			log.Debug("record skipped", logx.Int("index", i), logx.String("reason", skip))
			continue
		}

		for part, msg := range msgs {
			if n.limiter != nil {
				if err := n.limiter.Wait(ctx); err != nil {
					return res, err
				}
			}
			rr := n.dispatch(ctx, i, part, rec.SNS.MessageID, msg)
			res.Records = append(res.Records, rr)
			if rr.Err != nil {
				n.publish(res.BatchID, rr, EventFailed)
				log.Warn("dispatch failed", logx.Int("index", i), logx.Int("part", part), logx.Err(rr.Err))
				continue
			}
			n.publish(res.BatchID, rr, EventSent)
			log.Debug("dispatched", logx.Int("index", i), logx.Int("part", part), logx.Int("status", rr.StatusCode))
		}
	}

	err := res.Err()
	log.Info("batch handled",
		logx.Int("records", len(batch.Records)),
		logx.Int("sent", res.Sent()),
		logx.Int("failed", len(res.Failed())),
		logx.Duration("took", time.Since(start)),
	)
	return res, err
}

// render decodes record i into zero or more messages. A non-empty skip
// reason means the record is intentionally not sent.
func (n *Notifier) render(batch event.Batch, i int) (msgs []transport.Message, skip string, err error) {
	payload := batch.Records[i].SNS.Message
	parseErr := func(err error) error {
		return &event.PayloadParseError{Kind: n.cfg.Kind, Index: i, Err: err}
	}

	switch n.cfg.Kind {
	case event.KindCodeBuild:
		cb, err := event.DecodeCodeBuild(payload)
		if err != nil {
			return nil, "", parseErr(err)
		}
		if n.cfg.LabelMode == format.LabelProjectName {
			if err := cb.RequireProjectName(); err != nil {
				return nil, "", parseErr(err)
			}
		}
		return []transport.Message{format.CodeBuild(cb, n.opts)}, "", nil

	case event.KindCloudFormation:
		ev, err := event.DecodeStack(payload)
		if err != nil {
			return nil, "", parseErr(err)
		}
		if reason := format.StackSkipReason(ev); reason != "" {
			return nil, reason, nil
		}
		region, err := ev.Region()
		if err != nil {
			return nil, "", parseErr(err)
		}
		return []transport.Message{format.Stack(ev, region, n.opts)}, "", nil

	case event.KindSNSError:
		return []transport.Message{format.SNSError(payload, n.opts)}, "", nil

	case event.KindDLQError:
		envs, err := event.DecodeDLQ(payload)
		if err != nil {
			return nil, "", parseErr(err)
		}
		if len(envs) == 0 {
			return nil, "no nested notifications", nil
		}
		// the error summary is carried by the first record of the batch
		errMsg, _ := event.Attribute(batch.Records[0], "ErrorMessage")
		out := make([]transport.Message, 0, len(envs))
		for _, env := range envs {
			out = append(out, format.DLQError(env.Records, errMsg, n.opts))
		}
		return out, "", nil

	default:
		return nil, "", fmt.Errorf("unsupported kind %q", n.cfg.Kind)
	}
}

func (n *Notifier) dispatch(ctx context.Context, i, part int, messageID string, msg transport.Message) RecordResult {
	rr := RecordResult{
		Index:      i,
		Part:       part,
		MessageID:  messageID,
		Kind:       n.cfg.Kind,
		Text:       msg.PlainText(),
		Dispatched: true,
	}
	start := time.Now()
	receipt, err := n.sink.Send(ctx, msg)
	rr.Took = time.Since(start)
	rr.StatusCode = receipt.StatusCode
	if err != nil {
		var de *transport.DispatchError
		if errors.As(err, &de) {
			rr.StatusCode = de.StatusCode
		}
		rr.Err = fmt.Errorf("record %d: %w", i, err)
	}
	return rr
}

func (n *Notifier) publish(batchID string, rr RecordResult, typ string) {
	if n.bus == nil {
		return
	}
	now := time.Now()
	ev := DispatchEvent{
		BatchID:    batchID,
		Index:      rr.Index,
		Part:       rr.Part,
		MessageID:  rr.MessageID,
		Kind:       string(rr.Kind),
		Sink:       n.sink.Name(),
		Channel:    n.cfg.Channel,
		Text:       rr.Text,
		StatusCode: rr.StatusCode,
		SkipReason: rr.SkipReason,
		Took:       rr.Took,
		At:         now,
	}
	if rr.Err != nil {
		ev.Error = rr.Err.Error()
	}
	n.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
