//go:build windows

package hinako

// NewMemJmp produces an assembler pre-seeded with the inbound jump: a
// relative jump from the patch site to the cave. displacement =
// cave.addr - (patchSite.addr + 5), per spec §4.G. data.Addr must already
// be resolved (after the pattern scan has located the patch site).
func NewMemJmp(data *HookData) (*Asm, error) {
	addr, ok := data.Addr()
	if !ok {
		return nil, Otherf("NewMemJmp called before the patch site address was resolved")
	}
	rel := int32(int64(data.HookMem.Addr) - (int64(addr) + 5))
	a := &Asm{}
	a.EmitJmpRel32(rel)
	return a, nil
}

// EndJmp appends the outbound (trampoline-tail) jump to asm, then pads with
// nops-1 single-byte nops, per spec §4.G. The jump size is derived from the
// length of spec.BuildJmp(data), nominally 5.
func EndJmp(asm *Asm, nops int, data *HookData, spec HookSpec, target uintptr) error {
	jmpBytes, err := spec.BuildJmp(data)
	if err != nil {
		return err
	}
	rel := calcRelInst(asm, data.HookMem.Addr, target, len(jmpBytes))
	asm.EmitJmpRel32(rel)
	for i := 1; i < nops; i++ {
		asm.EmitNop()
	}
	return nil
}
