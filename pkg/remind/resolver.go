package remind

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FixedFormatResolver resolves a small set of unambiguous time formats
// for local/console use. It understands absolute stamps, "in N
// minutes/hours/days" offsets and bare clock times (today, or tomorrow if
// already past). Free-form natural language stays with the
// LLM-backed resolver owned by the orchestration layer.
type FixedFormatResolver struct {
	Now func() time.Time // defaults to time.Now
}

var (
	relativePattern = regexp.MustCompile(`^in\s+(\d+)\s*(minutes?|mins?|m|hours?|hrs?|h|days?|d)$`)
	clockPattern    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func (r FixedFormatResolver) ResolveTime(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	text = strings.TrimSpace(text)

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	text = strings.ToLower(text)

	if m := relativePattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse offset %q: %w", m[1], err)
		}
		unit := time.Minute
		switch {
		case strings.HasPrefix(m[2], "h"):
			unit = time.Hour
		case strings.HasPrefix(m[2], "d"):
			unit = 24 * time.Hour
		}
		return now().In(loc).Add(time.Duration(n) * unit), nil
	}

	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid clock time %q", text)
		}
		n := now().In(loc)
		t := time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, loc)
		if !t.After(n) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q (try \"2006-01-02 15:04\", \"15:04\" or \"in 10 minutes\")", text)
}
