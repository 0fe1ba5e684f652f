// Package gnu orders version strings the way GNU "sort -V" does. It
// covers tags that are not semantic versions, such as llvmorg-17.0.1,
// curl-8_4_0 or release-10.
package gnu

import "strings"

// Compare returns a negative number, zero or a positive number as a sorts
// before, equal to, or after b. Runs of digits compare by numeric value,
// ignoring leading zeros. Other characters compare letters before
// punctuation, and '~' before everything including the end of string.
func Compare(a, b string) int {
	for a != "" || b != "" {
		var ta, tb string
		ta, a = cut(a, false)
		tb, b = cut(b, false)
		if c := compareText(ta, tb); c != 0 {
			return c
		}
		ta, a = cut(a, true)
		tb, b = cut(b, true)
		if c := compareNumber(ta, tb); c != 0 {
			return c
		}
	}
	return 0
}

// cut splits the leading run of digits (or non-digits) off s.
func cut(s string, digits bool) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareText(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		if c := weight(a, i) - weight(b, i); c != 0 {
			return c
		}
	}
	return 0
}

func compareNumber(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// weight is the sort key of s[i]; past the end it is 0.
func weight(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	switch c := s[i]; {
	case c == '~':
		return -1
	case isAlpha(c):
		return int(c)
	default:
		return int(c) + 256
	}
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isAlpha(c byte) bool { return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' }
