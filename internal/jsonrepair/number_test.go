package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{12.5, 12.5, true},
		{json.Number("7"), 7, true},
		{"12", 12, true},
		{"$1,250.00", 1250, true},
		{"12 LF", 12, true},
		{"85%", 85, true},
		{"(50.00)", -50, true},
		{"-3", -3, true},
		{"- $4", -4, true},
		{".5", 0.5, true},
		{"n/a", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := Number(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}
}

func TestNumberSuffix(t *testing.T) {
	assert.Equal(t, "LF", NumberSuffix("12 LF"))
	assert.Equal(t, "sq ft", NumberSuffix("1,200sq ft"))
	assert.Equal(t, "", NumberSuffix("12"))
	assert.Equal(t, "", NumberSuffix("abc"))
}
