package amount

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Merit amounts are whole points carried as int64.

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrFractional    = errors.New("merit amounts must be whole points")
)

// Parse accepts an optionally signed integer, also written with a zero
// fraction ("5.0") as legacy clients send numbers that way.
func Parse(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	whole, frac, hasFrac := strings.Cut(trimmed, ".")
	if whole == "" || !isDigits(whole) {
		return 0, ErrInvalidAmount
	}
	if hasFrac {
		if frac == "" || !isDigits(frac) {
			return 0, ErrInvalidAmount
		}
		if strings.Trim(frac, "0") != "" {
			return 0, ErrFractional
		}
	}
	value, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return sign * value, nil
}

// Format renders a signed amount with an explicit plus sign for positives.
func Format(value int64) string {
	if value > 0 {
		return fmt.Sprintf("+%d", value)
	}
	return strconv.FormatInt(value, 10)
}

func Abs(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}

// Sign returns -1, 0 or 1.
func Sign(value int64) int64 {
	switch {
	case value > 0:
		return 1
	case value < 0:
		return -1
	default:
		return 0
	}
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
