package router

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dayNames = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

const (
	maskWeekdays = 0b0011111
	maskWeekends = 0b1100000
	maskDaily    = 0b1111111
)

// parseDaysMask accepts "mon,wed", "daily", "weekdays", "weekends" or a 7-bit
// string like "1010100" (Monday first).
func parseDaysMask(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return 0, fmt.Errorf("days are required")
	case "daily", "everyday":
		return maskDaily, nil
	case "weekdays":
		return maskWeekdays, nil
	case "weekends":
		return maskWeekends, nil
	}

	if len(s) == 7 && strings.Trim(s, "01") == "" {
		mask := 0
		for i, ch := range s {
			if ch == '1' {
				mask |= 1 << i
			}
		}
		if mask == 0 {
			return 0, fmt.Errorf("days mask selects no day")
		}
		return mask, nil
	}

	mask := 0
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		day, ok := dayNames[part]
		if !ok {
			return 0, fmt.Errorf("unknown day %q", part)
		}
		mask |= 1 << day
	}
	if mask == 0 {
		return 0, fmt.Errorf("days mask selects no day")
	}
	return mask, nil
}

func formatDaysMask(mask int) string {
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	var out []string
	for i, n := range names {
		if mask&(1<<i) != 0 {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func parseTimeOfDay(raw string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}

// parseWhen parses an absolute fire time in the router's timezone.
// Accepted: "2006-01-02 15:04" (two args joined) and RFC 3339.
func parseWhen(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expected \"YYYY-MM-DD HH:MM\" or RFC3339, got %q", raw)
}
