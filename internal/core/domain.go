package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the version written into every persisted State.
const SchemaVersion = 1

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date with no time-of-day component, serialised as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	// Entry is one recorded addition. ID and Timestamp never change after creation.
	Entry struct {
		ID        string    `json:"id"`
		Count     int64     `json:"count"`
		Timestamp time.Time `json:"timestamp"`
	}

	// DailyTotal is the closed-out aggregate of a past business day.
	DailyTotal struct {
		Date  Date  `json:"date"`
		Total int64 `json:"total"`
	}

	// State is the whole persisted aggregate.
	State struct {
		Version       int          `json:"version"`
		TotalCount    int64        `json:"totalCount"`
		LifetimeTotal int64        `json:"lifetimeTotal"`
		History       []Entry      `json:"history"`     // current business day, newest first
		DailyTotals   []DailyTotal `json:"dailyTotals"` // closed days, newest first
		LastResetDate Date         `json:"lastResetDate"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidCount       = errors.New("invalid count")
	ErrUnsupportedVersion = errors.New("unsupported state version")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// SameDay reports whether both dates name the same calendar day.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewState returns an empty state whose open bucket is the given business date.
func NewState(today Date) State {
	return State{
		Version:       SchemaVersion,
		History:       []Entry{},
		DailyTotals:   []DailyTotal{},
		LastResetDate: today,
	}
}

// Clone returns a deep copy so callers can never alias the store's slices.
func (s State) Clone() State {
	out := s
	out.History = append(make([]Entry, 0, len(s.History)), s.History...)
	out.DailyTotals = append(make([]DailyTotal, 0, len(s.DailyTotals)), s.DailyTotals...)
	return out
}

// HistorySum is the sum of the counts currently in History.
func (s State) HistorySum() int64 {
	var sum int64
	for _, e := range s.History {
		sum += e.Count
	}
	return sum
}

// Consistent reports whether TotalCount matches the entries it summarises.
func (s State) Consistent() bool {
	return s.TotalCount == s.HistorySum()
}

// Validate checks a decoded state before it is handed to the store.
func (s State) Validate() error {
	if s.Version < 1 || s.Version > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	if err := s.LastResetDate.Validate(); err != nil {
		return fmt.Errorf("last reset date: %w", err)
	}
	return nil
}

// NegativeDays lists closed days whose total went below zero. Edits are not
// clamped, so these are legal but worth surfacing.
func (s State) NegativeDays() []Date {
	var days []Date
	for _, dt := range s.DailyTotals {
		if dt.Total < 0 {
			days = append(days, dt.Date)
		}
	}
	return days
}
