package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayPolicy decides which calendar date a point in time belongs to.
// A business day starts at CutoffHour in the fixed Offset zone, not at midnight.
type DayPolicy struct {
	Offset     time.Duration // east of UTC
	CutoffHour int
}

// DefaultDayPolicy starts the day at 06:00 UTC+05:30.
var DefaultDayPolicy = DayPolicy{Offset: 5*time.Hour + 30*time.Minute, CutoffHour: 6}

const maxOffset = 14 * time.Hour

func (p DayPolicy) Validate() error {
	if p.CutoffHour < 0 || p.CutoffHour > 23 {
		return fmt.Errorf("cutoff hour %d out of range 0-23", p.CutoffHour)
	}
	if p.Offset < -maxOffset || p.Offset > maxOffset {
		return fmt.Errorf("utc offset %s out of range", p.Offset)
	}
	if p.Offset%time.Minute != 0 {
		return fmt.Errorf("utc offset %s must be whole minutes", p.Offset)
	}
	return nil
}

// Location returns the fixed zone the policy computes dates in.
func (p DayPolicy) Location() *time.Location {
	return time.FixedZone(FormatUTCOffset(p.Offset), int(p.Offset/time.Second))
}

// BusinessDate maps now to its business date. Before the cutoff hour the
// previous calendar date in the reference zone is used.
func (p DayPolicy) BusinessDate(now time.Time) Date {
	local := now.In(p.Location())
	if local.Hour() < p.CutoffHour {
		local = local.AddDate(0, 0, -1)
	}
	return NewDate(local.Year(), int(local.Month()), local.Day())
}

// ParseUTCOffset parses "+05:30", "-03:00", "+0530" or "Z".
func ParseUTCOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "Z" || s == "UTC" {
		return 0, nil
	}
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid utc offset %q", s)
	}
	sign := time.Duration(1)
	if s[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(s[1:], ":", "")
	if len(body) != 2 && len(body) != 4 {
		return 0, fmt.Errorf("invalid utc offset %q", s)
	}
	hours, err := strconv.Atoi(body[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid utc offset %q: %w", s, err)
	}
	minutes := 0
	if len(body) == 4 {
		if minutes, err = strconv.Atoi(body[2:]); err != nil {
			return 0, fmt.Errorf("invalid utc offset %q: %w", s, err)
		}
	}
	if minutes >= 60 {
		return 0, fmt.Errorf("invalid utc offset %q: minutes out of range", s)
	}
	return sign * (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), nil
}

// FormatUTCOffset renders an offset as ±HH:MM.
func FormatUTCOffset(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}
