//go:build windows

package winproc

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/dk2014/hinako/memerr"
)

// moduleEnumCap bounds how many module handles a single EnumProcessModules
// call can retrieve; grown and retried if the victim has more than this.
const moduleEnumCap = 1024

// ModuleInfo is a module's base address and image size in the remote
// process (spec.md §4.F).
type ModuleInfo struct {
	BaseAddr uintptr
	Size     uint32
}

// ModuleRecord pairs a decoded module name with its handle and info, as
// returned by Enumerate.
type ModuleRecord struct {
	Name   string
	Handle windows.Handle
	Info   ModuleInfo
}

// Enumerate retrieves every loaded module's handle, file name, and module
// info for the process behind h. Names that fail to decode as valid UTF-8
// are dropped, not reported as errors (spec.md §4.F).
func Enumerate(h *Handle, timeout *time.Duration) ([]ModuleRecord, error) {
	handles, err := withHandle(h, timeout, func(proc windows.Handle) ([]windows.Handle, error) {
		buf := make([]windows.Handle, moduleEnumCap)
		for {
			var needed uint32
			size := uint32(len(buf)) * uint32(unsafe.Sizeof(buf[0]))
			if err := windows.EnumProcessModules(proc, &buf[0], size, &needed); err != nil {
				return nil, memerr.OsAPIError(err).AddContext("EnumProcessModules")
			}
			count := int(needed) / int(unsafe.Sizeof(buf[0]))
			if count <= len(buf) {
				return buf[:count], nil
			}
			buf = make([]windows.Handle, count)
		}
	})
	if err != nil {
		return nil, err
	}

	records := make([]ModuleRecord, 0, len(handles))
	for _, mh := range handles {
		name, err := moduleFileName(h, mh, timeout)
		if err != nil {
			log.WithField("moduleHandle", mh).Debug("dropping module with undecodable name")
			continue
		}
		info, err := Info(h, mh, timeout)
		if err != nil {
			continue
		}
		records = append(records, ModuleRecord{Name: name, Handle: mh, Info: info})
	}
	log.WithField("count", len(records)).Debug("enumerated modules")
	return records, nil
}

func moduleFileName(h *Handle, mh windows.Handle, timeout *time.Duration) (string, error) {
	return withHandle(h, timeout, func(proc windows.Handle) (string, error) {
		var buf [260]uint16
		n, err := windows.GetModuleFileNameEx(proc, mh, &buf[0], uint32(len(buf)))
		if err != nil {
			return "", memerr.OsAPIError(err).AddContext("GetModuleFileNameEx")
		}
		name := string(utf16.Decode(buf[:n]))
		if !isValidUTF8Path(name) {
			return "", memerr.Otherf("module name is not valid UTF-8")
		}
		return name, nil
	})
}

func isValidUTF8Path(s string) bool {
	return strings.ToValidUTF8(s, "") == s
}

// FindByName locates the first module whose name matches. When stem is
// true only the last path segment is compared; otherwise the full string
// is compared (spec.md §4.F).
func FindByName(h *Handle, name string, stem bool, timeout *time.Duration) (windows.Handle, bool, error) {
	records, err := Enumerate(h, timeout)
	if err != nil {
		return 0, false, err
	}
	for _, r := range records {
		candidate := r.Name
		if stem {
			candidate = filepath.Base(candidate)
		}
		if strings.EqualFold(candidate, name) {
			return r.Handle, true, nil
		}
	}
	log.WithField("module", name).Debug("module not found")
	return 0, false, nil
}

// Info retrieves a module's base address and image size.
func Info(h *Handle, mod windows.Handle, timeout *time.Duration) (ModuleInfo, error) {
	return withHandle(h, timeout, func(proc windows.Handle) (ModuleInfo, error) {
		var mi windows.ModuleInfo
		if err := windows.GetModuleInformation(proc, mod, &mi, uint32(unsafe.Sizeof(mi))); err != nil {
			return ModuleInfo{}, memerr.OsAPIError(err).AddContext("GetModuleInformation")
		}
		return ModuleInfo{BaseAddr: mi.BaseOfDll, Size: mi.SizeOfImage}, nil
	})
}

