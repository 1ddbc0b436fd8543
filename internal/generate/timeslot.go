package generate

import (
	"strings"
	"time"
)

// FormatTimeSlot renders "HH:MM – HH:MM Uhr" in loc, or "HH:MM Uhr" without an end.
// Missing starts, date-only values and unparsable starts yield "".
func FormatTimeSlot(start, end *string, loc *time.Location) string {
	s, ok := parseDateTime(start)
	if !ok {
		return ""
	}
	slot := s.In(loc).Format("15:04")
	if e, ok := parseDateTime(end); ok {
		slot += " – " + e.In(loc).Format("15:04")
	}
	return slot + " Uhr"
}

func parseDateTime(v *string) (time.Time, bool) {
	if v == nil || !strings.Contains(*v, "T") {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
