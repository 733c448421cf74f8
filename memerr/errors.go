package memerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind tags the taxonomy of errors hinako can return. See spec §4.B /
// original_source/src/error/mod.rs (MemOpError) for the variants this
// mirrors.
type Kind int

const (
	// KindTimeoutReached means a handle-acquire or a safe-memory wait did
	// not complete within its budget.
	KindTimeoutReached Kind = iota
	// KindMemoryStateInvalid means the page-safety predicate rejected the
	// target page's allocation state, protection, or type.
	KindMemoryStateInvalid
	// KindPatternNotFound means a hook's signature was not located in the
	// scanned module image. Terminal for one Install call.
	KindPatternNotFound
	// KindOsAPI wraps a failed Windows API call.
	KindOsAPI
	// KindOther is the catch-all for logic errors; its chain extends with
	// each AddContext call instead of gaining a new outer layer.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindTimeoutReached:
		return "TimeoutReached"
	case KindMemoryStateInvalid:
		return "MemoryStateInvalid"
	case KindPatternNotFound:
		return "PatternNotFound"
	case KindOsAPI:
		return "OsAPI"
	case KindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Bit positions of MemStateInfo.BadFields, matching original_source's
// INVALID_ALLOCATION_TYPE / INVALID_PROTECTION_FLAGS / INVALID_PAGE_TYPE.
const (
	InvalidAllocationType  uint8 = 0b001
	InvalidProtectionFlags uint8 = 0b010
	InvalidPageType        uint8 = 0b100
)

// MemStateInfo carries the offending page's raw Windows MEMORY_BASIC_INFORMATION
// fields plus the bitmask of which checks failed.
type MemStateInfo struct {
	State      uint32
	Protect    uint32
	Type       uint32
	BadFields  uint8
	NeedsWrite bool
}

// MemError is hinako's single error type. Its Kind selects which of the
// typed payload fields is meaningful.
type MemError struct {
	Kind     Kind
	Timeout  *time.Duration
	MemState *MemStateInfo
	OsErr    error

	context []string // outermost first
	wrapped error     // only meaningful for KindOther
}

// TimeoutError builds a KindTimeoutReached error.
func TimeoutError(timeout *time.Duration) *MemError {
	return &MemError{Kind: KindTimeoutReached, Timeout: timeout}
}

// MemoryStateError builds a KindMemoryStateInvalid error.
func MemoryStateError(state MemStateInfo) *MemError {
	return &MemError{Kind: KindMemoryStateInvalid, MemState: &state}
}

// PatternNotFoundError builds a KindPatternNotFound error.
func PatternNotFoundError() *MemError {
	return &MemError{Kind: KindPatternNotFound}
}

// OsAPIError builds a KindOsAPI error wrapping the platform error.
func OsAPIError(err error) *MemError {
	return &MemError{Kind: KindOsAPI, OsErr: err}
}

// OtherError builds a KindOther error wrapping an arbitrary cause.
func OtherError(err error) *MemError {
	return &MemError{Kind: KindOther, wrapped: err}
}

// Otherf builds a KindOther error from a format string, the way
// anyhow::anyhow! is used throughout original_source.
func Otherf(format string, args ...any) *MemError {
	return &MemError{Kind: KindOther, wrapped: fmt.Errorf(format, args...)}
}

// AddContext prepends a context message without changing Kind, except when
// Kind is already KindOther, where the message extends the wrapped chain
// instead (spec §4.B).
func (e *MemError) AddContext(msg string) *MemError {
	clone := *e
	if e.Kind == KindOther {
		if e.wrapped != nil {
			clone.wrapped = fmt.Errorf("%s: %w", msg, e.wrapped)
		} else {
			clone.wrapped = fmt.Errorf("%s", msg)
		}
		return &clone
	}
	clone.context = make([]string, 0, len(e.context)+1)
	clone.context = append(clone.context, msg)
	clone.context = append(clone.context, e.context...)
	return &clone
}

// Unwrap exposes the wrapped cause (KindOther) or the wrapped OS error
// (KindOsAPI) so that errors.Is/As work across an OS error boundary.
func (e *MemError) Unwrap() error {
	if e.wrapped != nil {
		return e.wrapped
	}
	return e.OsErr
}

func (e *MemError) rootCause() string {
	switch e.Kind {
	case KindTimeoutReached:
		if e.Timeout != nil {
			return fmt.Sprintf("timed out waiting up to %s", *e.Timeout)
		}
		return "timed out"
	case KindMemoryStateInvalid:
		if e.MemState == nil {
			return "memory in an invalid state"
		}
		var bad []string
		if e.MemState.BadFields&InvalidAllocationType != 0 {
			bad = append(bad, fmt.Sprintf("allocation state 0x%x", e.MemState.State))
		}
		if e.MemState.BadFields&InvalidProtectionFlags != 0 {
			bad = append(bad, fmt.Sprintf("protection 0x%x", e.MemState.Protect))
		}
		if e.MemState.BadFields&InvalidPageType != 0 {
			bad = append(bad, fmt.Sprintf("page type 0x%x", e.MemState.Type))
		}
		op := "read"
		if e.MemState.NeedsWrite {
			op = "write"
		}
		return fmt.Sprintf("memory unsafe for %s: %s", op, strings.Join(bad, ", "))
	case KindPatternNotFound:
		return "pattern not found"
	case KindOsAPI:
		if e.OsErr != nil {
			return fmt.Sprintf("windows api call failed: %v", e.OsErr)
		}
		return "windows api call failed"
	case KindOther:
		if e.wrapped != nil {
			return e.wrapped.Error()
		}
		return "unspecified error"
	default:
		return "unknown error"
	}
}

// Error renders a deterministic single-line root-cause string, context
// prefixes first, per spec §4.B / §7.
func (e *MemError) Error() string {
	root := e.rootCause()
	if len(e.context) == 0 {
		return root
	}
	return strings.Join(e.context, ": ") + ": " + root
}

// IsTimeout reports whether err is (or wraps) a KindTimeoutReached MemError.
func IsTimeout(err error) bool { return kindIs(err, KindTimeoutReached) }

// IsMemoryStateInvalid reports whether err is (or wraps) a
// KindMemoryStateInvalid MemError.
func IsMemoryStateInvalid(err error) bool { return kindIs(err, KindMemoryStateInvalid) }

// IsPatternNotFound reports whether err is (or wraps) a KindPatternNotFound
// MemError.
func IsPatternNotFound(err error) bool { return kindIs(err, KindPatternNotFound) }

func kindIs(err error, k Kind) bool {
	var me *MemError
	if !errors.As(err, &me) {
		return false
	}
	return me.Kind == k
}
