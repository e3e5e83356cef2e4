package config

import (
	"fmt"
	"strings"
	"time"
)

// The duration knobs (scheduler.poll_period, storage.busy_timeout,
// telegram.poll_timeout) are Go duration strings in the file, e.g. "5s" or
// "2m". Empty means "use the component default"; negatives are rejected so a
// typo cannot turn the tick loop into a busy spin.

// ParseDurationField parses one such knob. path names the field in error
// messages so a rejected hot reload points at the offending line.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with the empty/zero case
// collapsed to def, for knobs that always need a working value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
