package config

import (
	"strings"
	"time"

	"stacknotify/internal/event"
	"stacknotify/internal/format"
	"stacknotify/internal/notifier"
	"stacknotify/internal/storage"
	"stacknotify/internal/transport/slack"
	"stacknotify/internal/transport/telegram"
	logx "stacknotify/pkg/logx"
)

func (c *Config) NotifierConfig() (notifier.Config, error) {
	kind, err := event.ParseKind(c.Notifier.Kind)
	if err != nil {
		return notifier.Config{}, err
	}
	mode, err := format.ParseLabelMode(c.Notifier.LabelMode)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Kind:       kind,
		Channel:    c.Slack.Channel,
		Username:   c.Slack.Username,
		IconEmoji:  c.Slack.IconEmoji,
		LabelMode:  mode,
		Label:      c.Notifier.Label,
		RatePerSec: c.Notifier.RatePerSec,
	}, nil
}

func (c *Config) SlackConfig() (slack.Config, error) {
	timeout, err := durationField("slack.timeout", c.Slack.Timeout, 0)
	if err != nil {
		return slack.Config{}, err
	}
	return slack.Config{Webhook: c.Slack.Webhook, Timeout: timeout}, nil
}

func (c *Config) TelegramConfig() (telegram.Config, error) {
	timeout, err := durationField("slack.timeout", c.Slack.Timeout, 0)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:    c.Telegram.Token,
		ChatID:   c.Telegram.ChatID,
		ThreadID: c.Telegram.ThreadID,
		APIURL:   c.Telegram.APIURL,
		Timeout:  timeout,
	}, nil
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		File:   logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

func (c *Config) StorageConfig() (storage.Config, error) {
	busy, err := durationField("storage.busy_timeout", c.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	return storage.Config{Driver: driver, Path: strings.TrimSpace(c.Storage.Path), BusyTimeout: busy}, nil
}

// ReadTimeout returns server.read_timeout, defaulting to 10s.
func (c *Config) ReadTimeout() time.Duration {
	d, err := durationField("server.read_timeout", c.Server.ReadTimeout, 10*time.Second)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
