package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"stacknotify/internal/config"
	"stacknotify/internal/event"
	"stacknotify/internal/eventbus"
	"stacknotify/internal/notifier"
	"stacknotify/internal/runtime/supervisor"
	"stacknotify/internal/storage"
	"stacknotify/internal/transport"
	logx "stacknotify/pkg/logx"
)

// App owns the long-lived pieces shared by every entry point: config, logging,
// the event bus, the optional audit store and the current Notifier.
type App struct {
	cfgm *config.Manager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	audit *recorder

	notif atomic.Pointer[notifier.Notifier]
	// sinkOverride replaces the configured sink (tests, dry runs).
	sinkOverride transport.Sink

	sup     *supervisor.Supervisor
	started atomic.Bool
}

type Option func(*options)

type options struct {
	out  io.Writer
	sink transport.Sink
}

// WithOutput sends logs to w instead of stderr.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithSink bypasses the configured Slack/Telegram sink.
func WithSink(s transport.Sink) Option { return func(o *options) { o.sink = s } }

// New loads configuration from cfgPath (may be empty) plus the environment and
// builds the Notifier. It does not start any goroutines.
func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig(), o.out)
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		bus:          eventbus.New(),
		sinkOverride: o.sink,
	}

	sc, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if st != nil {
		a.store = st
		a.audit = newRecorder(a.bus, st, log.With(logx.String("comp", "audit")))
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	n, err := a.buildNotifier(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.notif.Store(n)
	return a, nil
}

func (a *App) buildNotifier(cfg *config.Config) (*notifier.Notifier, error) {
	nc, err := cfg.NotifierConfig()
	if err != nil {
		return nil, err
	}
	sink := a.sinkOverride
	if sink == nil {
		if sink, err = buildSink(cfg); err != nil {
			return nil, err
		}
	}
	return notifier.New(nc, sink,
		notifier.WithLogger(a.log.With(logx.String("comp", "notifier"))),
		notifier.WithBus(a.bus),
	)
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) Store() storage.Store { return a.store }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Notifier returns the current Notifier; config reloads replace it atomically.
func (a *App) Notifier() *notifier.Notifier { return a.notif.Load() }

// Handle runs one batch through the current Notifier. Before Start, the
// batch's audit records are written before Handle returns.
func (a *App) Handle(ctx context.Context, batch event.Batch) (notifier.Result, error) {
	res, err := a.Notifier().Handle(ctx, batch)
	if a.audit != nil && !a.started.Load() {
		a.audit.flush(ctx)
	}
	return res, err
}

// Start launches the background goroutines (audit recorder, config watch and
// reload). Callers add their own loops through Go.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.started.Store(true)

	if a.audit != nil {
		a.sup.Go("audit", a.audit.run)
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	// reject reloads whose sink or notifier cannot be built
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := cfg.NotifierConfig(); err != nil {
			return err
		}
		if a.sinkOverride == nil {
			if _, err := buildSink(cfg); err != nil {
				return err
			}
		}
		return nil
	})
	sub := a.cfgm.Subscribe(8)
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		return a.reloadLoop(c, sub)
	})
	return nil
}

// Go runs fn under the app supervisor. Start must have been called.
func (a *App) Go(name string, fn func(ctx context.Context) error) {
	a.sup.Go(name, fn)
}

// GoRestart runs fn under the app supervisor and restarts it with backoff when it fails.
func (a *App) GoRestart(name string, fn func(ctx context.Context) error) {
	a.sup.GoRestart(name, fn, supervisor.WithRestartBackoff(time.Second, time.Minute))
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop cancels every goroutine and waits for them, then closes the store and logs.
func (a *App) Stop(ctx context.Context) error {
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	return errors.Join(err, a.Close())
}

func (a *App) Close() error {
	var errs []error
	if a.audit != nil {
		a.audit.close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) error {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			// coalesce bursts
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if r := config.RestartRequired(sections); len(r) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(r, ",")))
	}

	a.logs.Apply(newCfg.LogConfig())

	n, err := a.buildNotifier(newCfg)
	if err != nil {
		a.log.Error("notifier rebuild failed; keeping previous", logx.Err(err))
		return
	}
	a.notif.Store(n)
}
