package core

import "time"

const (
	entryTimestampLayout = "Jan 2, 2006 Monday 3:04 PM"
	dailyDateLayout      = "Jan 2, 2006 Monday"
)

// FormatEntryTimestamp renders an entry time for display, e.g. "Mar 5, 2024 Tuesday 7:15 AM".
func FormatEntryTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(entryTimestampLayout)
}

// FormatDailyDate renders a business date for display, e.g. "Mar 5, 2024 Tuesday".
func FormatDailyDate(d Date) string {
	return d.Format(dailyDateLayout)
}
