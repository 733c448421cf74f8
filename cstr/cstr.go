//go:build windows

// Package cstr provides a fixed-size, null-terminated string usable as a
// hinako transmutable type, grounded on original_source's
// memory::utils::CStr256. The source marks CStr256 AutoImplTransmutable
// (plain POD, default byte-copy semantics); Go's Transmutable constraint
// is a closed union of numeric kinds that a byte array cannot join, so
// here CStr implements hinako.CustomTransmutable instead, with
// TransmuteFrom/ByteRepr doing nothing more than the same plain copy the
// source's default would have done — no pointer chasing.
package cstr

import (
	"errors"
	"strings"

	"github.com/dk2014/hinako"
)

// Size is CStr's fixed on-the-wire length, matching CStr256's 256 bytes.
const Size = 256

// ErrTooLong is returned by New when s does not fit in Size-1 bytes (the
// last byte is reserved for the null terminator).
var ErrTooLong = errors.New("cstr: string too long")

// CStr is a fixed Size-byte buffer holding a null-terminated string.
type CStr struct {
	data [Size]byte
}

// New builds a CStr from s, which must fit in Size-1 bytes.
func New(s string) (CStr, error) {
	var c CStr
	if len(s) > Size-1 {
		return c, ErrTooLong
	}
	copy(c.data[:], s)
	return c, nil
}

// String returns the decoded text up to the first null byte.
func (c CStr) String() string {
	end := Size
	if idx := indexByte(c.data[:], 0); idx >= 0 {
		end = idx
	}
	return strings.ToValidUTF8(string(c.data[:end]), "")
}

func indexByte(b []byte, target byte) int {
	for i, v := range b {
		if v == target {
			return i
		}
	}
	return -1
}

// TransmuteFrom implements hinako.CustomTransmutable: a plain Size-byte
// copy, no indirection.
func (c *CStr) TransmuteFrom(bytes []byte, _ *hinako.Hook, _ *hinako.MemOpContext) (CStr, bool, error) {
	if len(bytes) < Size {
		return CStr{}, false, nil
	}
	var out CStr
	copy(out.data[:], bytes[:Size])
	return out, true, nil
}

// ByteRepr implements hinako.CustomTransmutable: the plain memory image.
func (c *CStr) ByteRepr(_ *hinako.Hook, _ *hinako.MemOpContext) ([]byte, error) {
	out := make([]byte, Size)
	copy(out, c.data[:])
	return out, nil
}
