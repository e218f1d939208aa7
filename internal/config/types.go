package config

type Config struct {
	Notifier NotifierConfig `json:"notifier"`
	Slack    SlackConfig    `json:"slack"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Server   ServerConfig   `json:"server"`
	Queue    QueueConfig    `json:"queue"`
}

// NotifierConfig selects the record kind and the header label.
//
// Kind is one of codebuild (default), cloudformation, snserror, dlqerror.
// LabelMode is "fixed" (use Label) or "projectName" (use the build project).
type NotifierConfig struct {
	Kind       string `json:"kind,omitempty"`
	LabelMode  string `json:"label_mode,omitempty"`
	Label      string `json:"label,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
}

// SlackConfig configures the incoming-webhook sink.
//
// Webhook is required unless telegram is enabled.
type SlackConfig struct {
	Webhook   string `json:"webhook,omitempty" validate:"omitempty,url"`
	Channel   string `json:"channel,omitempty"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	// Timeout is a Go duration string (e.g. "10s").
	Timeout string `json:"timeout,omitempty"`
}

// TelegramConfig replaces Slack as the sink when Enabled.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty" validate:"required_if=Enabled true"`
	ChatID   int64  `json:"chat_id,omitempty" validate:"required_if=Enabled true"`
	ThreadID int    `json:"thread_id,omitempty" validate:"gte=0"`
	APIURL   string `json:"api_url,omitempty" validate:"omitempty,url"`
}

type LoggingConfig struct {
	Level  string      `json:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	Format string      `json:"format,omitempty" validate:"omitempty,oneof=console json"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the optional dispatch audit store.
//
// Example:
//
//	storage: { driver: sqlite, path: ./stacknotify_audit.db }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ServerConfig configures the SNS HTTP subscription endpoint.
type ServerConfig struct {
	Addr        string `json:"addr,omitempty"`
	AutoConfirm bool   `json:"auto_confirm"`
	// ReadTimeout is a Go duration string.
	ReadTimeout string `json:"read_timeout,omitempty"`
	// Pprof mounts net/http/pprof under /debug. Bind Addr to localhost when enabled.
	Pprof bool `json:"pprof"`
}

// QueueConfig configures the SQS poller.
type QueueConfig struct {
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
	WaitSeconds int    `json:"wait_seconds,omitempty" validate:"gte=0,lte=20"`
	MaxMessages int    `json:"max_messages,omitempty" validate:"gte=0,lte=10"`
	// RawDelivery means message bodies are the bare payload, not an SNS envelope.
	RawDelivery bool `json:"raw_delivery"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	return &Config{
		Notifier: NotifierConfig{Kind: "codebuild", LabelMode: "fixed"},
		Slack:    SlackConfig{Timeout: "10s"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Storage:  StorageConfig{Driver: "none"},
		Server:   ServerConfig{Addr: ":8080", ReadTimeout: "10s"},
		Queue:    QueueConfig{WaitSeconds: 20, MaxMessages: 10},
	}
}
