package core

import (
	"strconv"
	"strings"
	"unicode"
)

// MaxCount bounds a single entry so aggregates cannot overflow in practice.
const MaxCount int64 = 1_000_000_000

// QuickAddCounts are the preset buttons offered next to manual entry.
var QuickAddCounts = []int64{1, 10, 33, 100}

// ParseCount converts user input into a positive entry count.
//
// Only plain decimal digits are accepted, surrounded by optional whitespace.
// Signs, decimals and exponent forms are rejected, as are zero and values
// above MaxCount.
//
// Examples:
//
//	ParseCount("33")   -> 33, nil
//	ParseCount(" 7 ")  -> 7, nil
//	ParseCount("0")    -> 0, ErrInvalidCount
//	ParseCount("-5")   -> 0, ErrInvalidCount
//	ParseCount("1.5")  -> 0, ErrInvalidCount
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidCount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidCount
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidCount
	}
	if err := ValidateCount(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateCount checks an already-numeric count.
func ValidateCount(n int64) error {
	if n <= 0 || n > MaxCount {
		return ErrInvalidCount
	}
	return nil
}
