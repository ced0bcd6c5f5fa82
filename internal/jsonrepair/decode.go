package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DecodeInfo describes how Decode produced its value.
type DecodeInfo struct {
	// Text is the JSON text that was finally unmarshalled.
	Text      string
	Repaired  bool
	// DirectErr is why the raw text failed to parse before repair.
	DirectErr error
}

// DecodeError carries the raw input, the attempted repair and both parse errors.
type DecodeError struct {
	Raw       string
	Repaired  string
	DirectErr error
	RepairErr error
}

func (e *DecodeError) Error() string {
	if e.RepairErr == nil {
		return fmt.Sprintf("decode JSON: %v", e.DirectErr)
	}
	return fmt.Sprintf("decode JSON: direct: %v; after repair: %v", e.DirectErr, e.RepairErr)
}

// Decode unmarshals raw into v, falling back to Repair when raw is not valid JSON.
// Valid JSON that does not fit v is reported without a repair attempt.
func Decode(raw string, v any) (*DecodeInfo, error) {
	direct := strings.TrimSpace(raw)
	if json.Valid([]byte(direct)) {
		if err := json.Unmarshal([]byte(direct), v); err != nil {
			return nil, &DecodeError{Raw: raw, DirectErr: err}
		}
		return &DecodeInfo{Text: direct}, nil
	}

	var probe any
	directErr := json.Unmarshal([]byte(direct), &probe)
	if directErr == nil {
		directErr = errors.New("invalid JSON")
	}
	repaired := Repair(raw)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return nil, &DecodeError{Raw: raw, Repaired: repaired, DirectErr: directErr, RepairErr: err}
	}
	return &DecodeInfo{Text: repaired, Repaired: true, DirectErr: directErr}, nil
}

// ExtractCandidates returns every balanced {...} block in text, longest first.
// Nested blocks are included so a caller can fall back to an inner object when
// the outer one is damaged. When no block balances with string awareness, the
// scan is repeated treating quotes as plain characters.
func ExtractCandidates(text string) []string {
	blocks := braceBlocks(text, true)
	if len(blocks) == 0 {
		blocks = braceBlocks(text, false)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return len(blocks[i]) > len(blocks[j])
	})
	seen := make(map[string]bool, len(blocks))
	out := blocks[:0]
	for _, b := range blocks {
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

func braceBlocks(text string, stringAware bool) []string {
	var st strState
	var starts []int
	var blocks []string
	for i := 0; i < len(text); i++ {
		c := text[i]
		if stringAware && st.step(c) {
			continue
		}
		switch c {
		case '{':
			starts = append(starts, i)
		case '}':
			if len(starts) == 0 {
				continue
			}
			start := starts[len(starts)-1]
			starts = starts[:len(starts)-1]
			blocks = append(blocks, text[start:i+1])
		}
	}
	return blocks
}
