//go:build windows

// Package winproc holds the Windows-only collaborators of hinako: the
// process handle wrapper, remote memory primitives, and module discovery.
package winproc

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"github.com/dk2014/hinako/memerr"
)

// Handle wraps a raw process handle behind a mutex, giving every OS call
// that needs it exclusive, timed access. Grounded on original_source's
// SafeHandle/with_handle!, but realized without the thread-local Deref
// trick the source uses to hand back a borrowed reference — see
// DESIGN.md's component ledger, row A (spec.md §9 "Global mutable state").
type Handle struct {
	mu  sync.Mutex
	raw windows.Handle
}

// NewHandle wraps an already-open process handle.
func NewHandle(raw windows.Handle) *Handle {
	return &Handle{raw: raw}
}

// HandleGuard is the exclusive-access token returned by Acquire. Release
// must be called exactly once to hand the handle back.
type HandleGuard struct {
	h   *Handle
	raw windows.Handle
}

// Raw returns the underlying OS handle. Valid only until Release.
func (g *HandleGuard) Raw() windows.Handle { return g.raw }

// Release gives up exclusive access. Safe to call at most once per guard.
func (g *HandleGuard) Release() {
	g.h.mu.Unlock()
}

// acquirePollInterval bounds the backoff used while racing TryLock against
// a deadline; Go's sync.Mutex has no native timed-lock primitive.
const acquirePollInterval = 200 * time.Microsecond

// Acquire attempts to take exclusive access to the handle. With timeout
// nil it blocks indefinitely. With a non-nil timeout it polls TryLock with
// a short, constant backoff until the deadline, returning (nil, false) on
// expiry — the caller maps that to memerr.TimeoutError.
func (h *Handle) Acquire(timeout *time.Duration) (*HandleGuard, bool) {
	if timeout == nil {
		h.mu.Lock()
		return &HandleGuard{h: h, raw: h.raw}, true
	}
	deadline := time.Now().Add(*timeout)
	for {
		if h.mu.TryLock() {
			return &HandleGuard{h: h, raw: h.raw}, true
		}
		if time.Now().After(deadline) {
			log.WithField("timeout", *timeout).Warn("timed out acquiring process handle")
			return nil, false
		}
		time.Sleep(acquirePollInterval)
	}
}

// withHandle threads (timeout) through a single OS call site the way
// original_source's with_handle! macro does: acquire, call, release,
// translating acquisition failure into a TimeoutReached error.
func withHandle[T any](h *Handle, timeout *time.Duration, fn func(windows.Handle) (T, error)) (T, error) {
	var zero T
	guard, ok := h.Acquire(timeout)
	if !ok {
		return zero, memerr.TimeoutError(timeout).AddContext("acquiring process handle")
	}
	defer guard.Release()
	return fn(guard.Raw())
}
