package hinako

import (
	"encoding/binary"
	"math"
)

// Transmutable is the default marker set from spec §4.E: the fixed-width
// integers and floats that can be read/written as a plain little-endian
// memory image, with no pointer-chasing. Mirrors original_source's
// AutoImplTransmutable set (i32/i64/u32/u64/f32/f64).
type Transmutable interface {
	~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// sizeOfTransmutable returns sizeof(T) for the default marker set, the way
// bytemuck::try_pod_read_unaligned sizes its slice.
func sizeOfTransmutable[T Transmutable]() int {
	var zero T
	switch any(zero).(type) {
	case int32, uint32, float32:
		return 4
	case int64, uint64, float64:
		return 8
	default:
		return 0
	}
}

// decodeTransmutable reads T from an unaligned little-endian byte slice of
// sizeof(T) bytes. Returns false if bytes is too short.
func decodeTransmutable[T Transmutable](bytes []byte) (T, bool) {
	var zero T
	switch any(zero).(type) {
	case int32:
		if len(bytes) < 4 {
			return zero, false
		}
		return any(int32(binary.LittleEndian.Uint32(bytes))).(T), true
	case uint32:
		if len(bytes) < 4 {
			return zero, false
		}
		return any(binary.LittleEndian.Uint32(bytes)).(T), true
	case float32:
		if len(bytes) < 4 {
			return zero, false
		}
		return any(math.Float32frombits(binary.LittleEndian.Uint32(bytes))).(T), true
	case int64:
		if len(bytes) < 8 {
			return zero, false
		}
		return any(int64(binary.LittleEndian.Uint64(bytes))).(T), true
	case uint64:
		if len(bytes) < 8 {
			return zero, false
		}
		return any(binary.LittleEndian.Uint64(bytes)).(T), true
	case float64:
		if len(bytes) < 8 {
			return zero, false
		}
		return any(math.Float64frombits(binary.LittleEndian.Uint64(bytes))).(T), true
	default:
		return zero, false
	}
}

// encodeTransmutable returns the plain little-endian memory image of value,
// the way original_source's default Transmutable::byte_repr returns
// bytemuck::bytes_of(self).
func encodeTransmutable[T Transmutable](value T) []byte {
	switch v := any(value).(type) {
	case int32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return buf
	case uint32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, v)
		return buf
	case float32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		return buf
	case int64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v))
		return buf
	case uint64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v)
		return buf
	case float64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return buf
	default:
		return nil
	}
}

