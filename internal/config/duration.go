package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField parses a duration setting named by path. Blank and zero
// values yield def.
func durationField(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	case d == 0:
		return def, nil
	}
	return d, nil
}
