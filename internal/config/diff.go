package config

import (
	"sort"
	"strings"

	logx "stacknotify/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like webhook URLs or tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.kind", newCfg.Notifier.Kind),
			logx.String("notifier.label_mode", newCfg.Notifier.LabelMode),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		)
	}

	// Slack (never log webhook)
	if oldCfg.Slack != newCfg.Slack {
		changed = append(changed, "slack")
		attrs = append(attrs,
			logx.Bool("slack.webhook_changed", oldCfg.Slack.Webhook != newCfg.Slack.Webhook),
			logx.String("slack.channel", newCfg.Slack.Channel),
			logx.String("slack.timeout", strings.TrimSpace(newCfg.Slack.Timeout)),
		)
	}

	// Telegram (never log token)
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.String("logging.format", newCfg.Logging.Format),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	// server and queue only take effect on restart
	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		attrs = append(attrs, logx.String("server.addr", newCfg.Server.Addr))
	}
	if oldCfg.Queue != newCfg.Queue {
		changed = append(changed, "queue")
		attrs = append(attrs, logx.Bool("queue.raw_delivery", newCfg.Queue.RawDelivery))
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that changed but are not hot-reloadable.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "server", "queue", "storage":
			out = append(out, s)
		}
	}
	return out
}
