package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read on top of the config file.
const (
	EnvWebhook    = "WEBHOOK"
	EnvChannel    = "CHANNEL"
	EnvKind       = "HANDLER_KIND"
	EnvLabelMode  = "LABEL_MODE"
	EnvLabel      = "LABEL"
	EnvUsername   = "SLACK_USERNAME"
	EnvIcon       = "SLACK_ICON"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFormat  = "LOG_FORMAT"
	EnvConfigPath = "STACKNOTIFY_CONFIG"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// applyEnv overlays non-empty environment values onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Slack.Webhook, EnvWebhook)
	set(&cfg.Slack.Channel, EnvChannel)
	set(&cfg.Slack.Username, EnvUsername)
	set(&cfg.Slack.IconEmoji, EnvIcon)
	set(&cfg.Notifier.Kind, EnvKind)
	set(&cfg.Notifier.LabelMode, EnvLabelMode)
	set(&cfg.Notifier.Label, EnvLabel)
	set(&cfg.Logging.Level, EnvLogLevel)
	set(&cfg.Logging.Format, EnvLogFormat)
}
