package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// Number reads a number from a loosely typed JSON value. Strings are accepted
// with currency symbols, thousands separators, a trailing percent sign or a
// trailing unit ("12 LF"). A parenthesised amount "(50.00)" is negative.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return parseNumberString(n)
	default:
		return 0, false
	}
}

func parseNumberString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// NumberSuffix returns the text following the leading number of s, trimmed.
// For "12 LF" it returns "LF".
func NumberSuffix(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	m := leadingNumber.FindString(s)
	if m == "" {
		return ""
	}
	return strings.TrimSpace(s[len(m):])
}
