package alarm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Match "7:00", "06:30", "06:30:15"
var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// Match "30min", "2 hours", the "1h" of "1h 30m"
var durationToken = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-zµ]+)`)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond, "nsec": time.Nanosecond,
	"us": time.Microsecond, "µs": time.Microsecond, "usec": time.Microsecond,
	"ms": time.Millisecond, "msec": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseDuration parses Go durations ("1h30m") and the spelled-out forms used by
// older clients ("30min", "1h 30m", "2 hours").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	invalid := fmt.Errorf("invalid duration %q: expected e.g. \"30m\", \"30min\" or \"1h 30m\"", s)

	tokens := durationToken.FindAllStringSubmatchIndex(s, -1)
	if tokens == nil {
		return 0, invalid
	}

	var total time.Duration
	prev := 0
	for _, tok := range tokens {
		if strings.TrimSpace(s[prev:tok[0]]) != "" {
			return 0, invalid
		}
		value, err := strconv.ParseFloat(s[tok[2]:tok[3]], 64)
		if err != nil {
			return 0, invalid
		}
		unit, ok := durationUnits[s[tok[4]:tok[5]]]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, s[tok[4]:tok[5]])
		}
		total += time.Duration(value * float64(unit))
		prev = tok[1]
	}
	if strings.TrimSpace(s[prev:]) != "" {
		return 0, invalid
	}
	return total, nil
}

// ParseWakeTime parses a wake time given as a clock time ("06:30", "06:30:15")
// or as a duration since midnight ("6h30m", "6h 30min").
func ParseWakeTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if matches := clockPattern.FindStringSubmatch(s); matches != nil {
		hour, _ := strconv.Atoi(matches[1])
		min, _ := strconv.Atoi(matches[2])
		sec := 0
		if matches[3] != "" {
			sec, _ = strconv.Atoi(matches[3])
		}

		if hour > 23 {
			return 0, fmt.Errorf("invalid hour: %d", hour)
		}
		if min > 59 {
			return 0, fmt.Errorf("invalid minute: %d", min)
		}
		if sec > 59 {
			return 0, fmt.Errorf("invalid second: %d", sec)
		}

		return time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second, nil
	}

	d, err := ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid wake time %q: expected HH:MM[:SS] or a duration", s)
	}
	if d < 0 || d >= 24*time.Hour {
		return 0, fmt.Errorf("wake time %s must be within [0s, 24h)", d)
	}
	return d, nil
}

// FormatWakeTime renders a wake time as HH:MM:SS.
func FormatWakeTime(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
