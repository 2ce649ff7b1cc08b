package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"permitbot/internal/clock"
)

var epoch = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func TestSubmissionLockExclusiveUntilTTL(t *testing.T) {
	clk := clock.NewFake(epoch)
	lock := NewSubmissionLock(5*time.Minute, clk)

	if !lock.Acquire(42) {
		t.Fatal("first Acquire should succeed")
	}
	if lock.Acquire(42) {
		t.Fatal("second Acquire inside TTL should fail")
	}
	clk.Advance(5*time.Minute + time.Second)
	if !lock.Acquire(42) {
		t.Fatal("Acquire after TTL should succeed")
	}
}

func TestSubmissionLockBumpAndRelease(t *testing.T) {
	clk := clock.NewFake(epoch)
	lock := NewSubmissionLock(time.Minute, clk)

	lock.Bump(7)
	if lock.Busy(7) {
		t.Fatal("Bump must not acquire")
	}

	lock.Acquire(7)
	clk.Advance(50 * time.Second)
	lock.Bump(7)
	clk.Advance(50 * time.Second)
	if !lock.Busy(7) {
		t.Fatal("bumped entry expired early")
	}
	if lock.Acquire(7) {
		t.Fatal("Acquire on bumped entry should fail")
	}

	lock.Release(7)
	lock.Release(7)
	if !lock.Acquire(7) {
		t.Fatal("Acquire after Release should succeed")
	}
}

func TestSubmissionLockConcurrentAcquire(t *testing.T) {
	lock := NewSubmissionLock(time.Minute, clock.NewFake(epoch))
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.Acquire(99) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
}

func TestSubmissionLockSweep(t *testing.T) {
	clk := clock.NewFake(epoch)
	lock := NewSubmissionLock(time.Minute, clk)
	var swept []int64
	lock.OnExpire(func(id int64) { swept = append(swept, id) })

	lock.Acquire(1)
	clk.Advance(30 * time.Second)
	lock.Acquire(2)
	clk.Advance(31 * time.Second)

	if n := lock.Sweep(); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if lock.Len() != 1 || !lock.Busy(2) {
		t.Fatal("live entry was swept")
	}
	if len(swept) != 1 || swept[0] != 1 {
		t.Fatalf("expire hook got %v", swept)
	}
}

func TestSubmissionLockRunSweeper(t *testing.T) {
	clk := clock.NewFake(epoch)
	lock := NewSubmissionLock(10*time.Second, clk)
	lock.Acquire(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		lock.RunSweeper(ctx, 30*time.Second)
		close(done)
	}()

	clk.WaitForTimers(1)
	clk.Advance(30 * time.Second)
	waitFor(t, func() bool { return lock.Len() == 0 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
