package hinako

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsm_EmitJmpRel32(t *testing.T) {
	a := &Asm{}
	a.EmitJmpRel32(-5)

	got := a.Bytes()
	assert.Equal(t, byte(0xE9), got[0])
	assert.Len(t, got, 5)
	assert.Equal(t, 5, a.Offset())
}

func TestAsm_EmitNop(t *testing.T) {
	a := &Asm{}
	a.EmitNop()
	a.EmitNop()

	assert.Equal(t, []byte{0x90, 0x90}, a.Bytes())
}

func TestAsm_EmitBytes(t *testing.T) {
	a := &Asm{}
	a.EmitBytes([]byte{0x01, 0x02, 0x03})

	assert.Equal(t, []byte{0x01, 0x02, 0x03}, a.Bytes())
	assert.Equal(t, 3, a.Offset())
}

func TestAsm_BytesIsACopy(t *testing.T) {
	a := &Asm{}
	a.EmitNop()

	got := a.Bytes()
	got[0] = 0xFF

	assert.Equal(t, []byte{0x90}, a.Bytes())
}

func TestCalcRelInst_MatchesHandComputedDisplacement(t *testing.T) {
	a := &Asm{}
	a.EmitJmpRel32(0) // advances offset to 5

	const origin = uintptr(0x1000)
	const dest = uintptr(0x2000)
	const instSize = 5

	got := calcRelInst(a, origin, dest, instSize)

	want := int32(int64(dest) - (int64(origin) + int64(a.Offset()-1) + int64(instSize)))
	assert.Equal(t, want, got)
	assert.Equal(t, int32(0x2000-0x1009), got)
}
