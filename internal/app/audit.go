package app

import (
	"context"
	"time"

	"stacknotify/internal/eventbus"
	"stacknotify/internal/notifier"
	"stacknotify/internal/storage"
	logx "stacknotify/pkg/logx"
)

// auditBuffer bounds the dispatch events held between flushes. Lambda and
// handle flush after every batch, so it only has to cover one batch.
const auditBuffer = 4096

// recorder persists dispatch events from the bus into the audit store.
//
// It subscribes when the app is built, so every entry point is audited. A
// started app drains it from the "audit" goroutine; otherwise App.Handle
// flushes it after each batch.
type recorder struct {
	store  storage.Store
	log    logx.Logger
	events <-chan eventbus.Event
	unsub  func()
}

func newRecorder(bus eventbus.Bus, store storage.Store, log logx.Logger) *recorder {
	events, unsub := bus.Subscribe(auditBuffer, notifier.EventSent, notifier.EventFailed, notifier.EventSkipped)
	return &recorder{store: store, log: log, events: events, unsub: unsub}
}

func (r *recorder) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush(context.Background())
			return nil
		case e, ok := <-r.events:
			if !ok {
				return nil
			}
			r.record(ctx, e)
		}
	}
}

// flush writes every buffered event. The store calls are bounded so a stuck
// store cannot hold up shutdown.
func (r *recorder) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return
			}
			r.record(ctx, e)
		default:
			return
		}
	}
}

// close stops the subscription and records what is still buffered.
func (r *recorder) close() {
	r.unsub()
	r.flush(context.Background())
}

func (r *recorder) record(ctx context.Context, e eventbus.Event) {
	ev, ok := e.Data.(notifier.DispatchEvent)
	if !ok {
		return
	}
	if err := r.store.AppendDispatch(ctx, toRecord(e.Type, ev)); err != nil {
		r.log.Warn("audit append failed", logx.String("batch_id", ev.BatchID), logx.Int("index", ev.Index), logx.Err(err))
	}
}

func toRecord(typ string, ev notifier.DispatchEvent) storage.DispatchRecord {
	outcome := storage.OutcomeSent
	switch typ {
	case notifier.EventFailed:
		outcome = storage.OutcomeFailed
	case notifier.EventSkipped:
		outcome = storage.OutcomeSkipped
	}
	return storage.DispatchRecord{
		At:         ev.At,
		BatchID:    ev.BatchID,
		Index:      ev.Index,
		Part:       ev.Part,
		MessageID:  ev.MessageID,
		Kind:       ev.Kind,
		Sink:       ev.Sink,
		Channel:    ev.Channel,
		Outcome:    outcome,
		StatusCode: ev.StatusCode,
		SkipReason: ev.SkipReason,
		Error:      ev.Error,
		TookMS:     ev.Took.Milliseconds(),
		Text:       ev.Text,
	}
}
