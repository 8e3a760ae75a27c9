package core

import (
	"testing"
	"time"
)

func TestBusinessDate(t *testing.T) {
	p := DefaultDayPolicy
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		// 00:29 UTC is 05:59 IST, still the previous business day
		{"just before cutoff", time.Date(2024, 1, 3, 0, 29, 0, 0, time.UTC), "2024-01-02"},
		// 00:30 UTC is 06:00 IST
		{"at cutoff", time.Date(2024, 1, 3, 0, 30, 0, 0, time.UTC), "2024-01-03"},
		{"late evening IST", time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC), "2024-01-03"},
		// 19:00 UTC is 00:30 IST next calendar day, before cutoff
		{"after IST midnight", time.Date(2024, 1, 3, 19, 0, 0, 0, time.UTC), "2024-01-03"},
		{"year boundary", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2023-12-31"},
		{"other input zone", time.Date(2024, 1, 3, 7, 0, 0, 0, time.FixedZone("X", 3600)), "2024-01-03"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.BusinessDate(tc.now).String(); got != tc.want {
				t.Errorf("BusinessDate(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

func TestBusinessDateMidnightPolicy(t *testing.T) {
	p := DayPolicy{Offset: 0, CutoffHour: 0}
	got := p.BusinessDate(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	if got.String() != "2024-02-29" {
		t.Fatalf("unexpected date %s", got)
	}
}

func TestParseUTCOffset(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"+05:30", 5*time.Hour + 30*time.Minute, true},
		{"+0530", 5*time.Hour + 30*time.Minute, true},
		{"-03:00", -3 * time.Hour, true},
		{"+01", time.Hour, true},
		{"Z", 0, true},
		{"05:30", 0, false},
		{"+5:30", 0, false},
		{"+05:75", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseUTCOffset(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatUTCOffset(t *testing.T) {
	if got := FormatUTCOffset(5*time.Hour + 30*time.Minute); got != "+05:30" {
		t.Fatalf("got %s", got)
	}
	if got := FormatUTCOffset(-90 * time.Minute); got != "-01:30" {
		t.Fatalf("got %s", got)
	}
}

func TestDayPolicyValidate(t *testing.T) {
	if err := DefaultDayPolicy.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := []DayPolicy{
		{CutoffHour: 24},
		{CutoffHour: -1},
		{Offset: 15 * time.Hour},
		{Offset: 30 * time.Second},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
