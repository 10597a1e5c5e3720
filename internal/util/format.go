package util

import "strconv"

// FormatWL renders a WL amount with dots as thousands separators,
// e.g. 1234567 -> "1.234.567".
func FormatWL(x int64) string {
	s := strconv.FormatInt(x, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "." + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
