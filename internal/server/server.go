package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"stacknotify/internal/event"
	"stacknotify/internal/notifier"
	logx "stacknotify/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// Handler processes one batch; *app.App and *notifier.Notifier satisfy it.
type Handler interface {
	Handle(ctx context.Context, batch event.Batch) (notifier.Result, error)
}

type Config struct {
	Addr        string
	AutoConfirm bool
	ReadTimeout time.Duration
	// Pprof mounts the runtime profiler under /debug.
	Pprof bool
}

// Server is the SNS HTTP(S) subscription endpoint.
type Server struct {
	cfg    Config
	h      Handler
	log    logx.Logger
	client *http.Client
	router *chi.Mux
}

type Option func(*Server)

// WithHTTPClient sets the client used to confirm subscriptions.
func WithHTTPClient(hc *http.Client) Option { return func(s *Server) { s.client = hc } }

func New(cfg Config, h Handler, log logx.Logger, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:    cfg,
		h:      h,
		log:    log,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.router = r
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/sns", s.handleSNS)
	if s.cfg.Pprof {
		s.router.Mount("/debug", middleware.Profiler())
	}
}

func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("http server listening", logx.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type response struct {
	BatchID string `json:"batch_id,omitempty"`
	Sent    int    `json:"sent"`
	Failed  []int  `json:"failed,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleSNS(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(logx.String("request_id", middleware.GetReqID(r.Context())))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	env, err := event.DecodeEnvelope(body)
	if err != nil {
		http.Error(w, "invalid sns envelope", http.StatusBadRequest)
		return
	}

	switch env.Type {
	case event.EnvelopeNotification:
		s.notify(w, r, log, env)
	case event.EnvelopeSubscriptionConfirmation:
		s.confirm(w, r, log, env)
	default:
		log.Warn("sns message type not handled", logx.String("type", env.Type))
		http.Error(w, "unsupported message type", http.StatusBadRequest)
	}
}

func (s *Server) notify(w http.ResponseWriter, r *http.Request, log logx.Logger, env event.Envelope) {
	res, err := s.h.Handle(r.Context(), event.Single(env.Record()))
	out := response{BatchID: res.BatchID, Sent: res.Sent(), Failed: res.Failed()}
	status := http.StatusOK
	if err != nil {
		out.Error = err.Error()
		var pe *event.PayloadParseError
		if errors.As(err, &pe) {
			status = http.StatusUnprocessableEntity
		} else {
			status = http.StatusBadGateway
		}
		log.Warn("sns notification failed", logx.String("message_id", env.MessageID), logx.Int("status", status), logx.Err(err))
	}
	writeJSON(w, status, out)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request, log logx.Logger, env event.Envelope) {
	log = log.With(logx.String("topic_arn", env.TopicArn))
	if !s.cfg.AutoConfirm {
		log.Info("subscription confirmation received; auto_confirm disabled", logx.String("subscribe_url", env.SubscribeURL))
		w.WriteHeader(http.StatusOK)
		return
	}
	u, err := url.Parse(env.SubscribeURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		http.Error(w, "invalid SubscribeURL", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		http.Error(w, "invalid SubscribeURL", http.StatusBadRequest)
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Error("subscription confirm failed", logx.Err(err))
		http.Error(w, "confirm failed", http.StatusBadGateway)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("subscription confirm rejected", logx.Int("status", resp.StatusCode))
		http.Error(w, "confirm rejected", http.StatusBadGateway)
		return
	}
	log.Info("subscription confirmed", logx.String("host", strings.ToLower(u.Host)))
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
