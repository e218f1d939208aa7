package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"stacknotify/internal/event"
	"stacknotify/internal/format"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json paths (slack.webhook) instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Errors, " | ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Validate checks field constraints and the cross-section rules that struct
// tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("invalid config: nil")
	}
	res := &ValidationError{}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			// Namespace is "Config.slack.webhook"; drop the root type.
			ns := fe.Namespace()
			if _, rest, ok := strings.Cut(ns, "."); ok {
				ns = rest
			}
			res.add("field '%s' failed validation, condition: %s", ns, fe.Tag())
		}
	}

	if _, err := event.ParseKind(cfg.Notifier.Kind); err != nil {
		res.add("notifier.kind: %v", err)
	}
	if _, err := format.ParseLabelMode(cfg.Notifier.LabelMode); err != nil {
		res.add("notifier.label_mode: %v", err)
	}
	if !cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Slack.Webhook) == "" {
			res.add("slack.webhook is required (set WEBHOOK)")
		}
		if strings.TrimSpace(cfg.Slack.Channel) == "" {
			res.add("slack.channel is required (set CHANNEL)")
		}
	}
	if d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d != "" && d != "none" && strings.TrimSpace(cfg.Storage.Path) == "" {
		res.add("storage.path is required for driver %q", d)
	}

	durations := []struct{ path, raw string }{
		{"slack.timeout", cfg.Slack.Timeout},
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	}
	for _, d := range durations {
		if _, err := durationField(d.path, d.raw, 0); err != nil {
			res.add("%v", err)
		}
	}

	if len(res.Errors) > 0 {
		return res
	}
	return nil
}
