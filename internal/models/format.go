package models

import (
	"fmt"
	"strconv"
)

// Comma renders n with thousand separators ("1,234,567").
func Comma(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}

// Money renders a currency value with symbol and two decimals.
func Money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Rate1 renders a rate with one decimal place.
func Rate1(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// Rate2 renders a rate with two decimal places.
func Rate2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
