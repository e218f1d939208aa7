package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	logx "stacknotify/pkg/logx"
)

// Manager holds the committed configuration and republishes it to
// subscribers when Watch picks up a valid change.
type Manager struct {
	path      string
	lookupEnv func(string) (string, bool)
	log       logx.Logger
	check     func(ctx context.Context, cfg *Config) error

	mu   sync.RWMutex
	cfg  *Config
	sum  uint64
	subs map[chan *Config]struct{}
}

// NewManager reads path (YAML or JSON). An empty path means environment-only configuration.
func NewManager(path string) *Manager {
	return &Manager{
		path:      path,
		lookupEnv: os.LookupEnv,
		log:       logx.Nop(),
		subs:      make(map[chan *Config]struct{}),
	}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator adds a check that a reloaded config must pass before it is
// committed, on top of Validate.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) { m.check = fn }

// Parse layers defaults, the file and the environment. It does not validate.
func (m *Manager) Parse() (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(m.path) != "" {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return nil, err
		}
		if err := decodeFile(m.path, b, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg, m.lookupEnv)
	return cfg, nil
}

// Load parses and validates the config, then commits it.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.sum = fingerprint(cfg)
	m.mu.Unlock()
}

// Subscribe returns a channel that receives each committed reload. A slow
// subscriber only misses intermediate configs, never the latest.
func (m *Manager) Subscribe(buffer int) chan *Config {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Config, buffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

// publish must be called with m.mu held so Unsubscribe cannot close a channel mid-send.
func (m *Manager) publish(cfg *Config) {
	for ch := range m.subs {
		select {
		case ch <- cfg:
			continue
		default:
		}
		// full: drop the oldest pending config to make room
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
}

// reload re-reads the file and commits it when it changed and passes
// validation. It reports whether a new config was published.
func (m *Manager) reload(ctx context.Context) (bool, error) {
	cfg, err := m.Parse()
	if err != nil {
		return false, err
	}
	sum := fingerprint(cfg)
	m.mu.RLock()
	same := sum != 0 && sum == m.sum
	m.mu.RUnlock()
	if same {
		return false, nil
	}
	if err := Validate(cfg); err != nil {
		return false, err
	}
	if m.check != nil {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.check(cctx, cfg)
		cancel()
		if err != nil {
			return false, fmt.Errorf("rejected: %w", err)
		}
	}

	m.mu.Lock()
	m.cfg, m.sum = cfg, sum
	m.publish(cfg)
	m.mu.Unlock()
	return true, nil
}
