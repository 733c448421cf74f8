//go:build windows

// Package hinasync offloads hinako's synchronous Hook operations onto a
// bounded worker pool, mirroring original_source's smol::unblock offload
// (async_ext/mod.rs, hooks/async_ext/mod.rs): each call here runs the
// identical synchronous operation on a background goroutine and is
// awaited through a Future. The synchronous contract is unchanged; this
// package adds no new semantics of its own (spec.md §9 "Async surface").
package hinasync

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dk2014/hinako"
)

// Pool bounds how many hinako operations run concurrently.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool that runs at most maxConcurrent operations at once.
func NewPool(maxConcurrent int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Future is a suspension-friendly handle for one offloaded operation.
// Cancellation is cooperative: Wait's ctx only abandons waiting for the
// result, it does not abort the underlying goroutine (spec.md §9, "task
// abort" is explicitly not the cancellation model).
type Future struct {
	done chan struct{}
	err  error
}

// Wait blocks until the operation completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, op func() error) *Future {
	fut := &Future{done: make(chan struct{})}
	go func() {
		defer close(fut.done)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			fut.err = err
			return
		}
		defer p.sem.Release(1)
		fut.err = op()
	}()
	return fut
}

// Install offloads hook.Install onto the pool.
func (p *Pool) Install(ctx context.Context, hook *hinako.Hook, timeout *time.Duration) *Future {
	return p.run(ctx, func() error { return hook.Install(timeout) })
}

// Uninstall offloads hook.Uninstall onto the pool.
func (p *Pool) Uninstall(ctx context.Context, hook *hinako.Hook, timeout *time.Duration) *Future {
	return p.run(ctx, func() error { return hook.Uninstall(timeout) })
}

// InstallAll installs every hook concurrently, bounded by the pool, and
// cancels sibling work on the first error (an errgroup-backed batch
// variant of Install for clients managing many hooks at once).
func (p *Pool) InstallAll(ctx context.Context, hooks []*hinako.Hook, timeout *time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hooks {
		h := h
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.sem.Release(1)
			return h.Install(timeout)
		})
	}
	return g.Wait()
}

// UninstallAll is the InstallAll counterpart for teardown.
func (p *Pool) UninstallAll(ctx context.Context, hooks []*hinako.Hook, timeout *time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hooks {
		h := h
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.sem.Release(1)
			return h.Uninstall(timeout)
		})
	}
	return g.Wait()
}
