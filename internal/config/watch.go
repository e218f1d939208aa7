package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "stacknotify/pkg/logx"
)

// reloadDelay lets editors finish a save before the file is read.
const reloadDelay = 250 * time.Millisecond

var errWatchClosed = errors.New("config watch: watcher closed")

// Watch reloads the config file on change until ctx is done. A change that
// fails to parse or validate is logged and the committed config stays.
// Watcher failures are returned so the caller can restart Watch.
func (m *Manager) Watch(ctx context.Context) error {
	if strings.TrimSpace(m.path) == "" {
		<-ctx.Done()
		return nil
	}
	dir, name := filepath.Dir(m.path), filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()
	// watch the directory: editors often replace the file instead of writing it
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}
	m.log.Debug("config watch started", logx.String("path", m.path))

	var due <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return errWatchClosed
			}
			if strings.EqualFold(filepath.Base(ev.Name), name) {
				due = time.After(reloadDelay)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return errWatchClosed
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				return fmt.Errorf("config watch: %w", err)
			}
			m.log.Warn("config watch overflow; reloading", logx.String("path", m.path))
			due = time.After(reloadDelay)

		case <-due:
			due = nil
			changed, err := m.reload(ctx)
			switch {
			case err != nil:
				m.log.Warn("config reload failed; keeping current config", logx.String("path", m.path), logx.Err(err))
			case changed:
				m.log.Debug("config published", logx.String("path", m.path))
			}
		}
	}
}
