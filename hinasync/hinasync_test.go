//go:build windows

package hinasync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunCompletesAndReleasesSemaphore(t *testing.T) {
	p := NewPool(1)
	ctx := context.Background()

	calls := 0
	fut := p.run(ctx, func() error {
		calls++
		return nil
	})

	err := fut.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, p.sem.TryAcquire(1))
}

func TestPool_RunPropagatesOperationError(t *testing.T) {
	p := NewPool(1)
	ctx := context.Background()
	wantErr := errors.New("boom")

	fut := p.run(ctx, func() error { return wantErr })

	assert.ErrorIs(t, fut.Wait(ctx), wantErr)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(1)
	started := make(chan struct{})
	release := make(chan struct{})

	first := p.run(context.Background(), func() error {
		close(started)
		<-release
		return nil
	})

	<-started

	secondStarted := make(chan struct{})
	second := p.run(context.Background(), func() error {
		close(secondStarted)
		return nil
	})

	select {
	case <-secondStarted:
		t.Fatal("second operation started before the pool had capacity")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, first.Wait(context.Background()))
	assert.NoError(t, second.Wait(context.Background()))
}

func TestFuture_WaitRespectsContextCancellation(t *testing.T) {
	p := NewPool(1)
	block := make(chan struct{})
	defer close(block)

	fut := p.run(context.Background(), func() error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
