package managedfile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewFileStartsInStateNew(t *testing.T) {
	f := NewFile("/cache/a", Origin{RemotePath: "/a"}, Physical)
	assert.Equal(t, New, f.State())
	assert.Equal(t, int64(0), f.Weight())
	assert.False(t, f.Pinned())
	assert.False(t, f.Dirty())
}

func TestWeightFollowsState(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	f.SetEstimatedSizeBytes(100)
	f.SetState(Downloading)
	assert.Equal(t, int64(100), f.Weight())

	f.SetSizeBytes(80)
	f.SetState(Ready)
	assert.Equal(t, int64(80), f.Weight())

	f.SetState(Failed)
	assert.Equal(t, int64(0), f.Weight())
}

func TestPinPreventsNothingButTracksRefCount(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	f.Pin()
	f.Pin()
	assert.Equal(t, 2, f.RefCount())
	assert.True(t, f.Pinned())

	assert.Equal(t, 1, f.Unpin())
	assert.Equal(t, 0, f.Unpin())
	assert.Equal(t, 0, f.Unpin(), "unpinning below zero must clamp at zero")
	assert.False(t, f.Pinned())
}

func TestWaitForChangeWakesOnSetState(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	done := make(chan error, 1)
	go func() {
		done <- f.WaitForChange(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	f.SetState(Downloading)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForChange did not wake on SetState")
	}
}

func TestWaitForChangeRespectsContextCancellation(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.WaitForChange(ctx), context.Canceled)
}

func TestSetStateWakesAllWaiters(t *testing.T) {
	// spec.md §4.H steps 4/5: every waiter wakes on a state transition, not
	// just one.
	f := NewFile("/cache/a", Origin{}, Physical)
	const waiters = 8
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_ = f.WaitForChange(context.Background())
		}()
	}

	time.Sleep(10 * time.Millisecond)
	f.SetState(Ready)

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("not all waiters woke up")
	}
}

func TestFailSetsCooldown(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	f.Fail(50 * time.Millisecond)
	assert.Equal(t, Failed, f.State())
	assert.False(t, f.CooldownExpired(time.Now()))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, f.CooldownExpired(time.Now()))
}

func TestTouchProducesMonotonicTicks(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	t1 := f.Touch()
	t2 := f.Touch()
	assert.Greater(t, t2, t1, "lastAccessTick values must be totally ordered")
	assert.Equal(t, t2, f.LastAccessTick())
}

func TestMarkDirtyAndClearDirty(t *testing.T) {
	f := NewFile("/cache/a", Origin{}, Physical)
	f.MarkDirty()
	assert.True(t, f.Dirty())
	f.ClearDirty()
	assert.False(t, f.Dirty())
}
