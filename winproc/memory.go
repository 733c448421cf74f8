//go:build windows

package winproc

import (
	"errors"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"

	"github.com/dk2014/hinako/memerr"
)

var errIncompleteWrite = errors.New("incomplete write")

// Bit positions of the 3-bit mask the page-safety predicate reports,
// matching spec.md §4.D / original_source's INVALID_ALLOCATION_TYPE,
// INVALID_PROTECTION_FLAGS, INVALID_PAGE_TYPE constants exactly.
const (
	invalidAllocationType  = memerr.InvalidAllocationType
	invalidProtectionFlags = memerr.InvalidProtectionFlags
	invalidPageType        = memerr.InvalidPageType
)

// defaultSafeMemTimeout is the ceiling WaitForSafeMem applies when the
// caller passes a nil timeout (spec.md §4.D "a default ceiling (ten
// seconds) is applied").
const defaultSafeMemTimeout = 10 * time.Second

// safeMemPollSlice bounds how long a single park between page-info polls
// lasts; WaitForSafeMem parks in slices, not a busy loop.
const safeMemPollSlice = 10 * time.Millisecond

// postOpYield is the scheduling yield slept after a successful remote
// read/write, per spec.md §9 item 3: documented as a yield, not a timing
// guarantee.
const postOpYield = 1 * time.Nanosecond

const readableProtectMask = windows.PAGE_READONLY |
	windows.PAGE_READWRITE |
	windows.PAGE_WRITECOPY |
	windows.PAGE_EXECUTE_READ |
	windows.PAGE_EXECUTE_READWRITE |
	windows.PAGE_EXECUTE_WRITECOPY

const writableProtectMask = windows.PAGE_READWRITE |
	windows.PAGE_WRITECOPY |
	windows.PAGE_EXECUTE_READWRITE |
	windows.PAGE_EXECUTE_WRITECOPY

// MemoryRegion is a remotely allocated span, released exactly once even
// under concurrent Close calls (spec.md §8 "Region release").
type MemoryRegion struct {
	Handle *Handle
	Addr   uintptr
	Size   uintptr

	closed int32 // guarded via sync/atomic in Close
}

// Zero fills the region with zeros, delegating to WriteBytes.
func (r *MemoryRegion) Zero(timeout *time.Duration) error {
	return WriteBytes(r.Handle, r.Addr, make([]byte, r.Size), timeout)
}

// mbiSafetyCheck implements the page-safety predicate from spec.md §4.D:
// given {state, protect, pageType} and whether the caller needs to write,
// report the 3-bit failure mask (0 means safe).
func mbiSafetyCheck(state, protect, pageType uint32, needsWrite bool) uint8 {
	var mask uint8

	if protect&(windows.PAGE_GUARD|windows.PAGE_NOACCESS) != 0 || protect&readableProtectMask == 0 {
		mask |= invalidProtectionFlags
	}

	if needsWrite {
		if state != windows.MEM_COMMIT {
			mask |= invalidAllocationType
		}
		if pageType == 0 {
			mask |= invalidPageType
		}
		if pageType&windows.MEM_MAPPED != 0 && protect&windows.PAGE_WRITECOPY != 0 {
			mask |= invalidPageType
		}
		if pageType&windows.MEM_PRIVATE != 0 && protect&windows.PAGE_WRITECOPY != 0 {
			mask |= invalidPageType
		}
		if protect&writableProtectMask == 0 {
			mask |= invalidProtectionFlags
		}
	}

	return mask
}

func queryMemoryInfo(proc windows.Handle, addr uintptr) (windows.MemoryBasicInformation, error) {
	var mbi windows.MemoryBasicInformation
	_, err := windows.VirtualQueryEx(proc, addr, &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		return mbi, err
	}
	return mbi, nil
}

// WaitForSafeMem polls page info at addr until mbiSafetyCheck passes or
// the timeout elapses (ten seconds if nil), parking between polls instead
// of busy-looping (spec.md §4.D).
func WaitForSafeMem(h *Handle, addr uintptr, timeout *time.Duration, needsWrite bool) error {
	return waitForSafeMem(h, addr, timeout, needsWrite, "waiting for safe memory state")
}

func waitForSafeMem(h *Handle, addr uintptr, timeout *time.Duration, needsWrite bool, context string) error {
	budget := defaultSafeMemTimeout
	if timeout != nil {
		budget = *timeout
	}
	deadline := time.Now().Add(budget)

	for {
		mbi, err := withHandle(h, timeout, func(proc windows.Handle) (windows.MemoryBasicInformation, error) {
			mbi, err := queryMemoryInfo(proc, addr)
			if err != nil {
				return mbi, memerr.OsAPIError(err).AddContext("VirtualQueryEx")
			}
			return mbi, nil
		})
		if err != nil {
			return err
		}

		mask := mbiSafetyCheck(mbi.State, mbi.Protect, mbi.Type, needsWrite)
		if mask == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			log.WithFields(logrus.Fields{
				"addr":       addr,
				"state":      mbi.State,
				"protect":    mbi.Protect,
				"pageType":   mbi.Type,
				"badFields":  mask,
				"needsWrite": needsWrite,
				"context":    context,
			}).Warn("timed out waiting for safe memory state")

			return memerr.TimeoutError(&budget).AddContext(context)
		}

		remaining := time.Until(deadline)
		slice := safeMemPollSlice
		if remaining < slice {
			slice = remaining
		}
		time.Sleep(slice)
	}
}

// ChangeMemoryProtection changes the protection of [addr, addr+size) and
// returns the previous protection so the caller can restore it later.
func ChangeMemoryProtection(h *Handle, addr uintptr, size int, prot uint32, timeout *time.Duration) (uint32, error) {
	old, err := withHandle(h, timeout, func(proc windows.Handle) (uint32, error) {
		var old uint32
		if err := windows.VirtualProtectEx(proc, addr, uintptr(size), prot, &old); err != nil {
			return 0, memerr.OsAPIError(err).AddContext("VirtualProtectEx")
		}
		return old, nil
	})
	if err == nil {
		log.WithFields(logrus.Fields{"addr": addr, "size": size, "protect": prot, "previous": old}).Debug("changed memory protection")
	}
	return old, err
}

// AllocateMemory requests a committed+reserved span at an OS-chosen
// address with execute+read+write protection (spec.md §4.D).
func AllocateMemory(h *Handle, size int, timeout *time.Duration) (*MemoryRegion, error) {
	addr, err := withHandle(h, timeout, func(proc windows.Handle) (uintptr, error) {
		a, err := windows.VirtualAllocEx(proc, 0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
		if err != nil {
			return 0, memerr.OsAPIError(err).AddContext("VirtualAllocEx")
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	if addr == 0 {
		return nil, memerr.OsAPIError(windows.ERROR_NOT_ENOUGH_MEMORY).AddContext("VirtualAllocEx returned a null address")
	}
	log.WithFields(logrus.Fields{"addr": addr, "size": size}).Debug("allocated remote memory")
	return &MemoryRegion{Handle: h, Addr: addr, Size: uintptr(size)}, nil
}

// FreeMemory releases a remotely allocated span unconditionally. Errors
// are intentionally discarded by MemoryRegion.Close, which treats this as
// best-effort cleanup that must tolerate victim-process death (spec.md
// §4.D "MemoryRegion lifecycle").
func FreeMemory(h *Handle, addr uintptr, timeout *time.Duration) error {
	_, err := withHandle(h, timeout, func(proc windows.Handle) (struct{}, error) {
		return struct{}{}, windows.VirtualFreeEx(proc, addr, 0, windows.MEM_RELEASE)
	})
	if err != nil {
		log.WithFields(logrus.Fields{"addr": addr}).Debug("freeing remote memory failed, ignoring")
	}
	return err
}

// Close releases the region's remote span exactly once, even if called
// concurrently (spec.md §8 "Region release").
func (r *MemoryRegion) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	_ = FreeMemory(r.Handle, r.Addr, nil)
	return nil
}

// ReadBytes reads size bytes from addr, fencing with WaitForSafeMem
// before and after, truncating to the bytes actually transferred
// (spec.md §4.D).
func ReadBytes(h *Handle, addr uintptr, size int, timeout *time.Duration) ([]byte, error) {
	if err := waitForSafeMem(h, addr, timeout, false, "pre-read fence"); err != nil {
		return nil, err
	}

	buf, err := withHandle(h, timeout, func(proc windows.Handle) ([]byte, error) {
		out := make([]byte, size)
		var n uintptr
		if err := windows.ReadProcessMemory(proc, addr, &out[0], uintptr(size), &n); err != nil {
			return nil, memerr.OsAPIError(err).AddContext("ReadProcessMemory")
		}
		return out[:n], nil
	})
	if err != nil {
		return nil, err
	}

	time.Sleep(postOpYield)

	if err := waitForSafeMem(h, addr, timeout, false, "post-read fence"); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"addr": addr, "size": len(buf)}).Debug("read remote memory")
	return buf, nil
}

// WriteBytes switches addr's page to execute+read+write, fences, writes,
// restores the prior protection, then fences again (spec.md §4.D).
func WriteBytes(h *Handle, addr uintptr, data []byte, timeout *time.Duration) error {
	old, err := ChangeMemoryProtection(h, addr, len(data), windows.PAGE_EXECUTE_READWRITE, timeout)
	if err != nil {
		return err
	}

	if err := waitForSafeMem(h, addr, timeout, true, "pre-write fence"); err != nil {
		_, _ = ChangeMemoryProtection(h, addr, len(data), old, timeout)
		return err
	}

	n, werr := withHandle(h, timeout, func(proc windows.Handle) (uintptr, error) {
		var written uintptr
		if len(data) == 0 {
			return 0, nil
		}
		if err := windows.WriteProcessMemory(proc, addr, &data[0], uintptr(len(data)), &written); err != nil {
			return 0, memerr.OsAPIError(err).AddContext("WriteProcessMemory")
		}
		return written, nil
	})

	if _, rerr := ChangeMemoryProtection(h, addr, len(data), old, timeout); rerr != nil && werr == nil {
		werr = rerr
	}

	if werr != nil {
		return werr
	}
	if int(n) != len(data) {
		return memerr.OtherError(errIncompleteWrite).AddContext("WriteProcessMemory")
	}

	time.Sleep(postOpYield)

	if err := waitForSafeMem(h, addr, timeout, true, "post-write fence"); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"addr": addr, "size": len(data)}).Debug("wrote remote memory")
	return nil
}
