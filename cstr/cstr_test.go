//go:build windows

package cstr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndString_RoundTrip(t *testing.T) {
	c, err := New("hello world")

	assert.NoError(t, err)
	assert.Equal(t, "hello world", c.String())
}

func TestNew_TooLongFails(t *testing.T) {
	_, err := New(strings.Repeat("a", Size))

	assert.ErrorIs(t, err, ErrTooLong)
}

func TestString_EmptyWhenAllZero(t *testing.T) {
	var c CStr

	assert.Equal(t, "", c.String())
}

func TestTransmuteFrom_RoundTripsByteRepr(t *testing.T) {
	original, err := New("round trip")
	assert.NoError(t, err)

	repr, err := original.ByteRepr(nil, nil)
	assert.NoError(t, err)
	assert.Len(t, repr, Size)

	decoded, ok, err := original.TransmuteFrom(repr, nil, nil)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "round trip", decoded.String())
}

func TestTransmuteFrom_ShortBufferFails(t *testing.T) {
	var c CStr
	_, ok, err := c.TransmuteFrom([]byte{0x01, 0x02}, nil, nil)

	assert.NoError(t, err)
	assert.False(t, ok)
}
