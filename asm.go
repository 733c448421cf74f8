package hinako

import "encoding/binary"

// Asm is a minimal x86 code-emission buffer for the two instructions this
// library ever needs to produce: a relative jump and a nop. It replaces
// the teacher's and the original source's dynamic-assembler dependencies,
// which this spec has no further use for — see DESIGN.md.
type Asm struct {
	buf []byte
}

// Offset returns the number of bytes emitted so far.
func (a *Asm) Offset() int { return len(a.buf) }

// Bytes returns the finalized byte sequence (spec §4.G "finalize").
func (a *Asm) Bytes() []byte {
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	return out
}

// EmitJmpRel32 appends a 5-byte relative jump: 0xE9 followed by a
// little-endian int32 displacement (spec §6 byte-exact format).
func (a *Asm) EmitJmpRel32(rel int32) {
	var disp [4]byte
	binary.LittleEndian.PutUint32(disp[:], uint32(rel))
	a.buf = append(a.buf, 0xE9)
	a.buf = append(a.buf, disp[:]...)
}

// EmitNop appends a single 0x90 nop byte.
func (a *Asm) EmitNop() {
	a.buf = append(a.buf, 0x90)
}

// EmitBytes appends raw bytes verbatim, e.g. a HookSpec's hand-written
// payload prologue.
func (a *Asm) EmitBytes(b []byte) {
	a.buf = append(a.buf, b...)
}

// calcRelInst is the formula preserved from spec §4.G / original_source's
// calc_rel_inst: rel = dest - (origin + (asm.offset - 1) + inst_size).
// EndJmp, the only caller, calls it before emitting the jump, so
// asm.Offset() is then the offset at which the jump's 0xE9 opcode will be
// written; the "- 1" is applied to that offset as is.
func calcRelInst(asm *Asm, origin uintptr, dest uintptr, instSize int) int32 {
	return int32(int64(dest) - (int64(origin) + int64(asm.Offset()-1) + int64(instSize)))
}

