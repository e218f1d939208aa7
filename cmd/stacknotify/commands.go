package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	jsoniter "github.com/json-iterator/go"

	"stacknotify/internal/app"
	"stacknotify/internal/config"
	"stacknotify/internal/event"
	"stacknotify/internal/notifier"
	"stacknotify/internal/queue"
	"stacknotify/internal/server"
	"stacknotify/internal/transport"
	logx "stacknotify/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type handleCmd struct {
	Input string `arg:"" optional:"" default:"-" help:"Event file, or - for stdin."`
}

func (c *handleCmd) Run(ctx context.Context, g *Globals) error {
	batch, err := readBatch(c.Input)
	if err != nil {
		return err
	}
	a, err := app.New(g.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	res, herr := a.Handle(ctx, batch)
	if err := printResult(os.Stdout, res, herr); err != nil {
		return err
	}
	return herr
}

type renderCmd struct {
	Input string `arg:"" optional:"" default:"-" help:"Event file, or - for stdin."`
}

func (c *renderCmd) Run(ctx context.Context, g *Globals) error {
	batch, err := readBatch(c.Input)
	if err != nil {
		return err
	}
	// render needs no sink credentials, so skip full validation
	if err := config.LoadDotEnv(""); err != nil {
		return err
	}
	cfg, err := config.NewManager(g.Config).Parse()
	if err != nil {
		return err
	}
	nc, err := cfg.NotifierConfig()
	if err != nil {
		return err
	}
	log := logx.NewWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	n, err := notifier.New(nc, &stdoutSink{w: os.Stdout}, notifier.WithLogger(log))
	if err != nil {
		return err
	}
	_, err = n.Handle(ctx, batch)
	return err
}

type serveCmd struct{}

func (c *serveCmd) Run(ctx context.Context, g *Globals) error {
	a, err := app.New(g.Config)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}
	cfg := a.Config()
	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		AutoConfirm: cfg.Server.AutoConfirm,
		ReadTimeout: cfg.ReadTimeout(),
		Pprof:       cfg.Server.Pprof,
	}, a, a.Logger().With(logx.String("comp", "http")))
	a.Go("http", srv.Run)

	return runUntilDone(ctx, a)
}

type pollCmd struct {
	Queue string `help:"Override queue.url." placeholder:"URL"`
}

func (c *pollCmd) Run(ctx context.Context, g *Globals) error {
	a, err := app.New(g.Config)
	if err != nil {
		return err
	}
	cfg := a.Config()
	url := cfg.Queue.URL
	if c.Queue != "" {
		url = c.Queue
	}
	client, err := queue.NewSQSClient(ctx)
	if err != nil {
		_ = a.Close()
		return err
	}
	p, err := queue.New(queue.Config{
		URL:         url,
		WaitSeconds: int32(cfg.Queue.WaitSeconds),
		MaxMessages: int32(cfg.Queue.MaxMessages),
		RawDelivery: cfg.Queue.RawDelivery,
	}, client, a, a.Logger().With(logx.String("comp", "queue")))
	if err != nil {
		_ = a.Close()
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}
	a.GoRestart("queue.poll", p.Run)

	return runUntilDone(ctx, a)
}

type versionCmd struct{}

func (c *versionCmd) Run() error {
	fmt.Println("stacknotify", version)
	return nil
}

// runUntilDone reports readiness to systemd, waits for a signal or a fatal
// goroutine error, then stops the app.
func runUntilDone(ctx context.Context, a *app.App) error {
	log := a.Logger()
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify ready sent")
	}

	// a.Done also closes on ctx cancellation
	<-a.Done()
	if ctx.Err() != nil {
		log.Info("shutdown requested")
	} else {
		log.Error("stopping after fatal error", logx.Err(a.Err()))
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fatal := a.Err()
	if err := a.Stop(stopCtx); err != nil && !errors.Is(err, fatal) {
		return err
	}
	return fatal
}

func readBatch(path string) (event.Batch, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(io.LimitReader(os.Stdin, 8<<20))
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return event.Batch{}, err
	}
	return event.DecodeBatch(b)
}

type result struct {
	BatchID string   `json:"batch_id"`
	Sent    int      `json:"sent"`
	Failed  []int    `json:"failed,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func printResult(w io.Writer, res notifier.Result, err error) error {
	out := result{BatchID: res.BatchID, Sent: res.Sent(), Failed: res.Failed()}
	for _, rr := range res.Records {
		if rr.Skipped {
			out.Skipped = append(out.Skipped, fmt.Sprintf("%d: %s", rr.Index, rr.SkipReason))
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// stdoutSink prints each message as one JSON line instead of sending it.
type stdoutSink struct{ w io.Writer }

func (s *stdoutSink) Name() string { return "stdout" }

func (s *stdoutSink) Send(ctx context.Context, msg transport.Message) (transport.Receipt, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return transport.Receipt{}, err
	}
	if _, err := fmt.Fprintln(s.w, string(b)); err != nil {
		return transport.Receipt{}, err
	}
	return transport.Receipt{Sink: "stdout"}, nil
}
