package core

import (
	"errors"
	"testing"
)

func TestParseCount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"33", 33, true},
		{" 100 ", 100, true},
		{"007", 7, true},
		{"1000000000", MaxCount, true},
		{"1000000001", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"1.5", 0, false},
		{"1e3", 0, false},
		{"12abc", 0, false},
		{"٣", 0, false}, // non-ASCII digit
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("%q expected ErrInvalidCount, got %v", tc.in, err)
		}
	}
}

func TestQuickAddCountsAreValid(t *testing.T) {
	for _, n := range QuickAddCounts {
		if err := ValidateCount(n); err != nil {
			t.Fatalf("preset %d rejected: %v", n, err)
		}
	}
}
