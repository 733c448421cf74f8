//go:build windows

// Package widestr reads the wide-string layout described in spec.md §8
// scenario 6, ported from original_source's memory::read::read_wide_string:
// a 32-bit UTF-16 length at +0x10, and either a heap pointer at +0x00 (when
// the string is long enough to overflow an inline buffer) or the UTF-16
// bytes themselves stored inline at +0x00. This is the one CustomTransmutable
// implementation that actually chases a pointer, unlike cstr.CStr's plain
// copy.
package widestr

import (
	"encoding/binary"
	"errors"
	"unicode/utf16"

	"github.com/dk2014/hinako"
)

// HeaderSize is the VarSize a HookSpec must request for a WideString field:
// enough to cover the inline buffer (used when byte length < 8) and the
// length discriminant at +0x10.
const HeaderSize = 0x14

// lengthOffset is where the source stores the UTF-16 code-unit count.
const lengthOffset = 0x10

// inlineThreshold is the byte-length cutoff read_wide_string uses to decide
// between an inline buffer and a heap pointer (2L >= 8, i.e. L >= 4).
const inlineThreshold = 8

// ErrHeapWriteUnsupported is returned by ByteRepr when the value is long
// enough to require a heap-pointer layout: the source only ever reads this
// shape, it never allocates a new heap buffer to write one back.
var ErrHeapWriteUnsupported = errors.New("widestr: write of heap-backed wide strings is not supported")

// WideString is a decoded UTF-16 string read through the length/discriminant
// layout above.
type WideString struct {
	value string
}

// New wraps s for writing back with ByteRepr (inline layout only).
func New(s string) WideString { return WideString{value: s} }

// String returns the decoded text.
func (w WideString) String() string { return w.value }

// TransmuteFrom implements hinako.CustomTransmutable. bytes must be at
// least HeaderSize long, matching the VarSize a WideString field's HookSpec
// requests.
func (w *WideString) TransmuteFrom(bytes []byte, hook *hinako.Hook, ctx *hinako.MemOpContext) (WideString, bool, error) {
	if len(bytes) < HeaderSize {
		return WideString{}, false, nil
	}

	length := int32(binary.LittleEndian.Uint32(bytes[lengthOffset : lengthOffset+4]))
	if length == 0 {
		return WideString{}, true, nil
	}
	if length < 0 {
		return WideString{}, false, nil
	}
	byteLen := int(length) * 2

	var raw []byte
	if byteLen >= inlineThreshold {
		ptr := binary.LittleEndian.Uint32(bytes[0:4])
		var err error
		raw, err = hinako.ReadAt(hook, uintptr(ptr), byteLen, ctx.Timeout)
		if err != nil {
			return WideString{}, false, err
		}
	} else {
		if len(bytes) < byteLen {
			return WideString{}, false, nil
		}
		raw = bytes[0:byteLen]
	}

	units := make([]uint16, byteLen/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return WideString{value: string(utf16.Decode(units))}, true, nil
}

// ByteRepr implements hinako.CustomTransmutable. Only the inline layout
// (byte length under 8) can be written back, since writing the heap layout
// would require allocating a fresh remote buffer for the pointer to target,
// which read_wide_string's write side never does either.
func (w *WideString) ByteRepr(hook *hinako.Hook, ctx *hinako.MemOpContext) ([]byte, error) {
	units := utf16.Encode([]rune(w.value))
	byteLen := len(units) * 2
	if byteLen >= inlineThreshold {
		return nil, ErrHeapWriteUnsupported
	}

	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[lengthOffset:lengthOffset+4], uint32(len(units)))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out, nil
}
