package hinako

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePattern(t *testing.T) {
	got := ParsePattern("48 ?? 8B")
	want := []PatternByte{
		{Value: 0x48},
		{Wildcard: true},
		{Value: 0x8B},
	}
	assert.Equal(t, want, got)
}

func TestParsePattern_MalformedTokenIsZero(t *testing.T) {
	got := ParsePattern("zz 01")
	want := []PatternByte{
		{Value: 0x00},
		{Value: 0x01},
	}
	assert.Equal(t, want, got)
}

func TestFindAll_Wildcard(t *testing.T) {
	pattern := ParsePattern("48 ?? 8B")
	haystack := []byte{0x01, 0x48, 0xFF, 0x8B, 0x02, 0x48, 0x7A, 0x8B}

	matches := FindAll(haystack, pattern)

	assert.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Offset)
	assert.Equal(t, []byte{0x48, 0xFF, 0x8B}, matches[0].Captured)
	assert.Equal(t, 5, matches[1].Offset)
	assert.Equal(t, []byte{0x48, 0x7A, 0x8B}, matches[1].Captured)
}

func TestFindAll_Soundness(t *testing.T) {
	pattern := ParsePattern("90 ?? 90")
	haystack := []byte{0x90, 0x01, 0x90, 0x90, 0x02, 0x90, 0x00}

	matches := FindAll(haystack, pattern)

	for _, m := range matches {
		for i, pb := range pattern {
			if !pb.Wildcard {
				assert.Equal(t, pb.Value, haystack[m.Offset+i])
			}
		}
	}
}

func TestFindAll_AscendingOrder(t *testing.T) {
	pattern := ParsePattern("01")
	haystack := []byte{0x01, 0x00, 0x01, 0x01}

	matches := FindAll(haystack, pattern)

	offsets := make([]int, len(matches))
	for i, m := range matches {
		offsets[i] = m.Offset
	}
	assert.Equal(t, []int{0, 2, 3}, offsets)
}

func TestFindAll_NoMatchWhenHaystackTooShort(t *testing.T) {
	pattern := ParsePattern("01 02 03")
	assert.Nil(t, FindAll([]byte{0x01, 0x02}, pattern))
}

func TestUnhookBytes_RoundTrip(t *testing.T) {
	pattern := ParsePattern("48 ?? 8B ??")
	captured := []byte{0x48, 0xAA, 0x8B, 0xBB}

	got := UnhookBytes(pattern, captured)

	assert.Equal(t, []byte{0x48, 0xAA, 0x8B, 0xBB}, got)
}

func TestUnhookBytes_PrefersConcretePatternByte(t *testing.T) {
	pattern := ParsePattern("90 90 90 90 90")
	captured := []byte{0x11, 0x22, 0x33, 0x44, 0x55}

	got := UnhookBytes(pattern, captured)

	assert.Equal(t, []byte{0x90, 0x90, 0x90, 0x90, 0x90}, got)
}
