package app

import (
	"stacknotify/internal/config"
	"stacknotify/internal/transport"
	"stacknotify/internal/transport/slack"
	"stacknotify/internal/transport/telegram"
)

// buildSink picks Telegram when enabled, otherwise the Slack webhook.
func buildSink(cfg *config.Config) (transport.Sink, error) {
	if cfg.Telegram.Enabled {
		tc, err := cfg.TelegramConfig()
		if err != nil {
			return nil, err
		}
		return telegram.New(tc)
	}
	sc, err := cfg.SlackConfig()
	if err != nil {
		return nil, err
	}
	return slack.New(sc)
}
