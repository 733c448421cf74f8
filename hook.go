//go:build windows

package hinako

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"github.com/dk2014/hinako/winproc"
)

// HookSpec is the client-supplied, cloneable description of one hook
// (spec.md §3 "HookSpec"). Implementations typically embed BaseSpec to
// pick up the conventional defaults for VarSize/HookAllocSize/BuildJmp.
type HookSpec interface {
	Pattern() []PatternByte
	ModuleName() string
	VarSize() int
	HookAllocSize() int
	BuildHook(data *HookData) ([]byte, error)
	BuildJmp(data *HookData) ([]byte, error)
	Clone() HookSpec
}

// BaseSpec supplies the conventional defaults from spec.md §3: a 4-byte
// variable region, a 4096-byte cave, and a build_jmp that defaults to the
// 5-byte relative jump produced by NewMemJmp. Embed it in a HookSpec
// implementation and override only what differs.
type BaseSpec struct{}

func (BaseSpec) VarSize() int       { return 4 }
func (BaseSpec) HookAllocSize() int { return 4096 }

func (BaseSpec) BuildJmp(data *HookData) ([]byte, error) {
	asm, err := NewMemJmp(data)
	if err != nil {
		return nil, err
	}
	return asm.Bytes(), nil
}

// HookData is the runtime record the engine maintains for one Hook
// (spec.md §3 "HookData"). Access is serialized by Hook.mu: readers are
// BuildHook/BuildJmp callers and the I/O façade; writers are Install and
// Uninstall.
type HookData struct {
	ModuleAddr    uintptr
	HookMem       *winproc.MemoryRegion
	VarMem        *winproc.MemoryRegion
	Pattern       []PatternByte
	VarSize       int
	HookAllocSize int

	addr       *uintptr
	foundBytes []byte
}

// Addr returns the resolved patch-site address, if the hook has scanned
// successfully at least once.
func (d *HookData) Addr() (uintptr, bool) {
	if d.addr == nil {
		return 0, false
	}
	return *d.addr, true
}

// FoundBytes returns the original bytes captured at the patch site during
// the last successful scan.
func (d *HookData) FoundBytes() ([]byte, bool) {
	if d.foundBytes == nil {
		return nil, false
	}
	return d.foundBytes, true
}

// hookBackend abstracts the winproc operations Hook needs. The production
// implementation (winHandleBackend) is a thin delegate to package winproc's
// free functions; tests substitute a fake so Install/Uninstall/Read/Write
// can be exercised without a live OS process handle.
type hookBackend interface {
	FindModule(name string, stem bool, timeout *time.Duration) (windows.Handle, bool, error)
	ModuleInfo(mod windows.Handle, timeout *time.Duration) (winproc.ModuleInfo, error)
	Allocate(size int, timeout *time.Duration) (*winproc.MemoryRegion, error)
	ChangeProtection(addr uintptr, size int, prot uint32, timeout *time.Duration) (uint32, error)
	ReadBytes(addr uintptr, size int, timeout *time.Duration) ([]byte, error)
	WriteBytes(addr uintptr, data []byte, timeout *time.Duration) error
}

// winHandleBackend is the real hookBackend, delegating to winproc against a
// live process handle.
type winHandleBackend struct {
	handle *winproc.Handle
}

func (b *winHandleBackend) FindModule(name string, stem bool, timeout *time.Duration) (windows.Handle, bool, error) {
	return winproc.FindByName(b.handle, name, stem, timeout)
}

func (b *winHandleBackend) ModuleInfo(mod windows.Handle, timeout *time.Duration) (winproc.ModuleInfo, error) {
	return winproc.Info(b.handle, mod, timeout)
}

func (b *winHandleBackend) Allocate(size int, timeout *time.Duration) (*winproc.MemoryRegion, error) {
	return winproc.AllocateMemory(b.handle, size, timeout)
}

func (b *winHandleBackend) ChangeProtection(addr uintptr, size int, prot uint32, timeout *time.Duration) (uint32, error) {
	return winproc.ChangeMemoryProtection(b.handle, addr, size, prot, timeout)
}

func (b *winHandleBackend) ReadBytes(addr uintptr, size int, timeout *time.Duration) ([]byte, error) {
	return winproc.ReadBytes(b.handle, addr, size, timeout)
}

func (b *winHandleBackend) WriteBytes(addr uintptr, data []byte, timeout *time.Duration) error {
	return winproc.WriteBytes(b.handle, addr, data, timeout)
}

// HookBackend is the seam Hook issues its remote memory operations through.
// Exported so CustomTransmutable implementations living in other packages
// can be tested against a fake backend via NewHookForIO, the same seam
// hook_test.go uses in-package for Install/Uninstall.
type HookBackend = hookBackend

// NewHookForIO builds a Hook around a caller-supplied backend and HookData,
// bypassing the module-resolution and allocation steps NewHook performs.
// Intended for tests of the I/O façade (Read/Write/ReadCustom/WriteCustom)
// and of CustomTransmutable implementations that chase pointers via
// ReadAt, without a live OS process handle.
func NewHookForIO(backend HookBackend, data HookData) *Hook {
	return &Hook{backend: backend, data: data}
}

// Hook orchestrates scan → allocate → assemble → patch install/uninstall
// for one patch site, and serializes access to its HookData with a
// reader-writer lock (spec.md §3 "Hook (facade)").
type Hook struct {
	backend hookBackend
	spec    HookSpec

	mu   sync.RWMutex
	data HookData
}

// NewHook resolves the target module, allocates the cave and variable
// regions, and returns a Hook ready to Install (spec.md §4.H "Creation").
func NewHook(handle *winproc.Handle, spec HookSpec) (*Hook, error) {
	return newHook(&winHandleBackend{handle: handle}, spec)
}

func newHook(backend hookBackend, spec HookSpec) (*Hook, error) {
	modHandle, ok, err := backend.FindModule(spec.ModuleName(), true, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Otherf("module not found: %s", spec.ModuleName())
	}

	info, err := backend.ModuleInfo(modHandle, nil)
	if err != nil {
		return nil, err
	}

	hookMem, err := backend.Allocate(spec.HookAllocSize(), nil)
	if err != nil {
		return nil, err
	}
	varMem, err := backend.Allocate(spec.VarSize(), nil)
	if err != nil {
		_ = hookMem.Close()
		return nil, err
	}

	log.WithFields(map[string]any{
		"module":  spec.ModuleName(),
		"hookMem": hookMem.Addr,
		"varMem":  varMem.Addr,
	}).Debug("hook created")

	return &Hook{
		backend: backend,
		spec:    spec,
		data: HookData{
			ModuleAddr:    info.BaseAddr,
			HookMem:       hookMem,
			VarMem:        varMem,
			Pattern:       spec.Pattern(),
			VarSize:       spec.VarSize(),
			HookAllocSize: spec.HookAllocSize(),
		},
	}, nil
}

// Install performs the scan → assemble → patch sequence from spec.md
// §4.H. The data write-lock is taken only while mutating addr/foundBytes;
// BuildHook/BuildJmp run under a read lock.
func (h *Hook) Install(timeout *time.Duration) error {
	modHandle, ok, err := h.backend.FindModule(h.spec.ModuleName(), true, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return Otherf("module not found: %s", h.spec.ModuleName())
	}
	info, err := h.backend.ModuleInfo(modHandle, timeout)
	if err != nil {
		return err
	}

	// The write-permissive change here is deliberate so scanning survives
	// pages that would otherwise refuse reads during code patching; unlike
	// the original, the prior protection is restored once the read is done
	// (see DESIGN.md, Open Question 1).
	old, err := h.backend.ChangeProtection(info.BaseAddr, int(info.Size), windows.PAGE_EXECUTE_READWRITE, timeout)
	if err != nil {
		return err
	}
	image, err := h.backend.ReadBytes(info.BaseAddr, int(info.Size), timeout)
	if _, rerr := h.backend.ChangeProtection(info.BaseAddr, int(info.Size), old, timeout); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return err
	}

	h.mu.RLock()
	pattern := h.data.Pattern
	h.mu.RUnlock()

	matches := FindAll(image, pattern)
	if len(matches) == 0 {
		log.WithField("module", h.spec.ModuleName()).Warn("pattern not found")
		return PatternNotFoundError()
	}
	match := matches[0]

	h.mu.Lock()
	addr := info.BaseAddr + uintptr(match.Offset)
	h.data.ModuleAddr = info.BaseAddr
	h.data.addr = &addr
	h.data.foundBytes = match.Captured
	h.mu.Unlock()

	h.mu.RLock()
	hookBytes, err := h.spec.BuildHook(&h.data)
	if err != nil {
		h.mu.RUnlock()
		return err
	}
	jumpBytes, err := h.spec.BuildJmp(&h.data)
	h.mu.RUnlock()
	if err != nil {
		return err
	}

	log.WithFields(map[string]any{"addr": addr, "cave": h.data.HookMem.Addr}).Debug("installing hook")

	if err := h.backend.WriteBytes(h.data.HookMem.Addr, hookBytes, timeout); err != nil {
		return err
	}
	return h.backend.WriteBytes(addr, jumpBytes, timeout)
}

// Uninstall restores the original bytes at the patch site (spec.md §4.H
// "Uninstall"). addr/foundBytes are intentionally left set afterward so a
// second Uninstall call is a harmless idempotent rewrite, matching the
// source (see DESIGN.md, Open Question 2).
func (h *Hook) Uninstall(timeout *time.Duration) error {
	h.mu.RLock()
	addr, hasAddr := h.data.Addr()
	foundBytes, hasFoundBytes := h.data.FoundBytes()
	pattern := h.data.Pattern
	h.mu.RUnlock()

	if !hasAddr {
		return nil
	}
	if !hasFoundBytes {
		return Otherf("unhook without prior scan")
	}

	original := UnhookBytes(pattern, foundBytes)
	log.WithField("addr", addr).Debug("uninstalling hook")
	return h.backend.WriteBytes(addr, original, timeout)
}
