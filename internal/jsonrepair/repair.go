// Package jsonrepair recovers parseable JSON from language-model output.
//
// Repair is heuristic and lossy. Callers parse its result and report both
// the direct and the repaired parse errors when that still fails.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Repair applies an ordered pipeline of text transforms to s and returns the
// best-effort result. Valid JSON is returned trimmed but otherwise unchanged.
// Repair never fails; an unrepairable input yields the last intermediate text.
func Repair(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed
	}

	out := stripFences(trimmed)
	out = extractBody(out)
	out = insertMissingCommas(out)
	out = closeUnterminatedString(out)
	out = removeTrailingCommas(out)
	out = balanceBrackets(out)
	out = trimNumberFragments(out)
	out = normalizeNumbers(out)
	out = stripControlChars(out)
	return out
}

// strState tracks whether the scanned position is inside a string literal.
type strState struct {
	in  bool
	esc bool
}

// step consumes c and reports whether c belongs to a string literal, quotes included.
func (s *strState) step(c byte) bool {
	if s.in {
		switch {
		case s.esc:
			s.esc = false
		case c == '\\':
			s.esc = true
		case c == '"':
			s.in = false
		}
		return true
	}
	if c == '"' {
		s.in = true
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

const fenceTagChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_+"

// stripFences removes markdown code fences around the text, including doubled fences.
func stripFences(s string) string {
	for {
		prev := s
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "```") {
			// Language tag directly follows the fence.
			s = strings.TrimLeft(s[3:], fenceTagChars)
		}
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "```") {
			s = strings.TrimSuffix(s, "```")
		}
		if s == prev {
			return s
		}
	}
}

// extractBody discards prose around the JSON value. It keeps the first object
// up to its matching close brace, or to the end of the text when truncated.
// A top-level array is kept when it spans the text and wrapped as
// {"items": [...]} when prose surrounds it.
func extractBody(s string) string {
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')
	if arr >= 0 && (obj < 0 || arr < obj) && looksLikeArray(s[arr+1:]) {
		end := matchingClose(s, arr)
		if end < 0 {
			if arr == 0 {
				return s
			}
			return `{"items": ` + s[arr:] + `}`
		}
		body := s[arr : end+1]
		if arr == 0 && strings.TrimSpace(s[end+1:]) == "" {
			return body
		}
		return `{"items": ` + body + `}`
	}
	if obj < 0 {
		return s
	}
	end := matchingClose(s, obj)
	if end < 0 {
		return s[obj:]
	}
	return s[obj : end+1]
}

// looksLikeArray reports whether the text after '[' starts like a JSON array element.
func looksLikeArray(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	if rest == "" {
		return true
	}
	c := rest[0]
	return c == '{' || c == '[' || c == ']' || c == '"' || c == '-' || isDigit(c)
}

// matchingClose returns the index of the bracket closing the one at open, or -1.
func matchingClose(s string, open int) int {
	var st strState
	depth := 0
	for i := open; i < len(s); i++ {
		c := s[i]
		if st.step(c) {
			continue
		}
		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isValueEnd(c byte) bool {
	return c == '"' || c == '}' || c == ']' || isDigit(c) || isLetter(c)
}

func isValueStart(c byte) bool {
	return c == '"' || c == '{' || c == '[' || c == '-' || isDigit(c) || isLetter(c)
}

// insertMissingCommas adds a comma between adjacent values that have no separator,
// such as `"a" "b"`, `} "b"`, `] {` or `100 "total"`. Runs like 1e5 are left alone.
func insertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	var st strState
	var last byte
	gap := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		wasIn := st.in
		inside := st.step(c)
		if !wasIn && inside {
			// Opening quote of a new string.
			if last != 0 && isValueEnd(last) {
				b.WriteByte(',')
			}
			b.WriteByte(c)
			gap = false
			continue
		}
		if inside {
			b.WriteByte(c)
			if !st.in {
				last = '"'
				gap = false
			}
			continue
		}
		if isSpace(c) {
			gap = true
			b.WriteByte(c)
			continue
		}
		if last != 0 && isValueEnd(last) && isValueStart(c) &&
			(gap || last == '"' || last == '}' || last == ']' || c == '{' || c == '[') {
			b.WriteByte(',')
		}
		b.WriteByte(c)
		last = c
		gap = false
	}
	return b.String()
}

// closeUnterminatedString appends a quote when the count of unescaped quotes is odd
// and the text does not already end in a quote.
func closeUnterminatedString(s string) string {
	count := 0
	esc := false
	for i := 0; i < len(s); i++ {
		switch {
		case esc:
			esc = false
		case s[i] == '\\':
			esc = true
		case s[i] == '"':
			count++
		}
	}
	trimmed := strings.TrimRight(s, " \t\r\n")
	if count%2 == 1 && !strings.HasSuffix(trimmed, `"`) {
		return trimmed + `"`
	}
	return s
}

// removeTrailingCommas drops commas directly followed by a closing brace or bracket.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var st strState
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.step(c) {
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

type frameState int

const (
	expectKey frameState = iota
	expectColon
	expectValue
	afterValue
)

type frame struct {
	closer byte
	state  frameState
}

func (f *frame) valueDone() {
	f.state = afterValue
}

// balanceBrackets closes open strings, objects and arrays. A dangling key
// gets ":null", a dangling colon gets "null", trailing commas are trimmed and
// partial literals (tru, nul) are completed before closers are appended.
func balanceBrackets(s string) string {
	var st strState
	var stack []*frame
	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	// A scalar or string finished in the current frame.
	scalar := func() {
		f := top()
		if f == nil {
			return
		}
		switch f.state {
		case expectKey:
			f.state = expectColon
		case expectValue:
			f.valueDone()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		wasIn := st.in
		if st.step(c) {
			if wasIn && !st.in {
				scalar()
			}
			continue
		}
		switch c {
		case '{', '[':
			if f := top(); f != nil && f.state == expectValue {
				f.valueDone()
			}
			fr := &frame{closer: '}', state: expectKey}
			if c == '[' {
				fr.closer = ']'
				fr.state = expectValue
			}
			stack = append(stack, fr)
		case '}', ']':
			if f := top(); f != nil && f.closer == c {
				stack = stack[:len(stack)-1]
			}
		case ':':
			if f := top(); f != nil && f.state == expectColon {
				f.state = expectValue
			}
		case ',':
			if f := top(); f != nil && f.state == afterValue {
				if f.closer == '}' {
					f.state = expectKey
				} else {
					f.state = expectValue
				}
			}
		default:
			if !isSpace(c) {
				scalar()
			}
		}
	}

	out := s
	if st.in {
		if st.esc {
			out = out[:len(out)-1]
		}
		out += `"`
		scalar()
	}
	if len(stack) == 0 {
		return out
	}

	out = strings.TrimRight(out, " \t\r\n")
	f := top()
	if f.state == afterValue {
		var incomplete bool
		out, incomplete = completeLiteral(out)
		if incomplete {
			f.state = expectValue
		}
	}
	switch f.state {
	case expectKey:
		out = strings.TrimRight(strings.TrimSuffix(out, ","), " \t\r\n")
	case expectColon:
		out += ":null"
	case expectValue:
		if f.closer == ']' {
			out = strings.TrimRight(strings.TrimSuffix(out, ","), " \t\r\n")
		} else {
			out += "null"
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i].closer)
	}
	return out
}

var literals = []string{"true", "false", "null"}

// completeLiteral finishes a truncated bare token at the end of s. The bool
// reports that the token was a dangling number fragment that had to be removed.
func completeLiteral(s string) (string, bool) {
	i := len(s)
	for i > 0 && (isLetter(s[i-1]) || isDigit(s[i-1]) || s[i-1] == '.' || s[i-1] == '-' || s[i-1] == '+') {
		i--
	}
	tok := s[i:]
	if tok == "" {
		return s, false
	}
	if isLetter(tok[0]) {
		for _, lit := range literals {
			if tok != lit && strings.HasPrefix(lit, tok) {
				return s[:i] + lit, false
			}
		}
		return s, false
	}
	trimmed := strings.TrimRight(tok, ".-+eE")
	if trimmed == "" {
		return strings.TrimRight(s[:i], " \t\r\n"), true
	}
	return s[:i] + trimmed, false
}

// trimNumberFragments completes number fragments that end before a closing
// brace, bracket or comma: "1." becomes 1 and a lone "-" becomes null.
func trimNumberFragments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var st strState
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.step(c) {
			b.WriteByte(c)
			prev = c
			continue
		}
		if (isDigit(c) || c == '-') && (prev == ':' || prev == '[' || prev == ',') {
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '.' || s[j] == '-' || s[j] == '+' || s[j] == 'e' || s[j] == 'E') {
				j++
			}
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			tok := s[i:j]
			if k == len(s) || s[k] == '}' || s[k] == ']' || s[k] == ',' {
				tok = strings.TrimRight(tok, ".-+eE")
				if tok == "" {
					tok = "null"
				}
			}
			b.WriteString(tok)
			prev = s[j-1]
			i = j - 1
			continue
		}
		b.WriteByte(c)
		if !isSpace(c) {
			prev = c
		}
	}
	return b.String()
}

var jsonNumber = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?(?:[eE][+-]?\d+)?$`)

// normalizeNumbers strips currency markers and thousands separators from bare
// numbers and unquotes numeric strings in value position.
func normalizeNumbers(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var st strState
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		wasIn := st.in
		if st.step(c) {
			if !wasIn {
				start = i
				continue
			}
			if st.in {
				continue
			}
			lit := s[start : i+1]
			inner := lit[1 : len(lit)-1]
			if jsonNumber.MatchString(inner) && !followedByColon(s, i+1) {
				b.WriteString(inner)
			} else {
				b.WriteString(lit)
			}
			start = -1
			continue
		}
		if c == '$' {
			j := i + 1
			for j < len(s) && s[j] == ' ' {
				j++
			}
			if j < len(s) && isDigit(s[j]) {
				n, end := scanCurrencyDigits(s, j)
				b.WriteString(n)
				i = end - 1
				continue
			}
		}
		b.WriteByte(c)
	}
	if start >= 0 {
		b.WriteString(s[start:])
	}
	return b.String()
}

// scanCurrencyDigits reads 1,250.00 style digits starting at i and returns them
// without separators plus the index after the number.
func scanCurrencyDigits(s string, i int) (string, int) {
	var b strings.Builder
	for i < len(s) {
		c := s[i]
		switch {
		case isDigit(c) || c == '.':
			b.WriteByte(c)
			i++
		case c == ',' && i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) &&
			(i+4 >= len(s) || !isDigit(s[i+4])):
			i++
		default:
			return b.String(), i
		}
	}
	return b.String(), i
}

func followedByColon(s string, i int) bool {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i < len(s) && s[i] == ':'
}

// stripControlChars removes control characters outside strings (keeping
// structural whitespace) and escapes newlines and tabs inside strings.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var st strState
	for i := 0; i < len(s); i++ {
		c := s[i]
		inside := st.step(c)
		if c >= 0x20 && c != 0x7f {
			b.WriteByte(c)
			continue
		}
		if !inside {
			if isSpace(c) {
				b.WriteByte(c)
			}
			continue
		}
		switch c {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		}
	}
	return b.String()
}
