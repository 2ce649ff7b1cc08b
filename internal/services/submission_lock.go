package services

import (
	"context"
	"log"
	"sync"
	"time"

	"permitbot/internal/clock"
)

const defaultSweepInterval = 30 * time.Second

// SubmissionLock keeps one data-collection flow per requester. Entries carry
// an expiry; an expired entry is as good as absent and the sweeper drops it.
// It does not cover the payment window: a requester may own several pending
// folios at once.
type SubmissionLock struct {
	mu       sync.Mutex
	active   map[int64]time.Time
	ttl      time.Duration
	clock    clock.Clock
	onExpire func(requesterID int64)
}

func NewSubmissionLock(ttl time.Duration, clk clock.Clock) *SubmissionLock {
	if clk == nil {
		clk = clock.Real()
	}
	return &SubmissionLock{
		active: make(map[int64]time.Time),
		ttl:    ttl,
		clock:  clk,
	}
}

// OnExpire registers a hook called (outside the lock) for every entry the sweep removes.
func (l *SubmissionLock) OnExpire(f func(requesterID int64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onExpire = f
}

// Acquire returns false while requesterID holds a live entry.
func (l *SubmissionLock) Acquire(requesterID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if exp, ok := l.active[requesterID]; ok && exp.After(now) {
		return false
	}
	l.active[requesterID] = now.Add(l.ttl)
	return true
}

// Bump extends a held entry. No-op when absent.
func (l *SubmissionLock) Bump(requesterID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.active[requesterID]; ok {
		l.active[requesterID] = l.clock.Now().Add(l.ttl)
	}
}

func (l *SubmissionLock) Release(requesterID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, requesterID)
}

// Busy reports whether requesterID holds a live entry.
func (l *SubmissionLock) Busy(requesterID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.active[requesterID]
	return ok && exp.After(l.clock.Now())
}

// Len counts stored entries, expired ones not yet swept included.
func (l *SubmissionLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// Sweep removes expired entries and returns how many it dropped.
func (l *SubmissionLock) Sweep() int {
	l.mu.Lock()
	now := l.clock.Now()
	var dead []int64
	for id, exp := range l.active {
		if !exp.After(now) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(l.active, id)
	}
	hook := l.onExpire
	l.mu.Unlock()

	if hook != nil {
		for _, id := range dead {
			hook(id)
		}
	}
	return len(dead)
}

// RunSweeper sweeps every interval until ctx is done.
func (l *SubmissionLock) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Printf("[lock][sweep] removed=%d", n)
			}
		}
	}
}
