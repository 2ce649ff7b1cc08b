package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"permitbot/internal/repositories"
)

const (
	defaultIDStride   = 10
	defaultMaxRetries = 5
)

// TicketAllocator issues folios of the form prefix + counter.
//
// The counter per prefix is seeded once from the highest folio in the store
// plus a stride, so ids handed out before a crash but never persisted are
// skipped after restart. It advances on every candidate, even when the
// caller later fails to persist, so an id is never issued twice.
type TicketAllocator struct {
	repo       repositories.TicketRepository
	stride     int64
	maxRetries int
	width      int

	mu       sync.Mutex
	counters map[string]int64
}

type AllocatorOptions struct {
	Stride     int64
	MaxRetries int
	Width      int // zero-pad the counter to this many digits; 0 disables
}

func NewTicketAllocator(repo repositories.TicketRepository, opts AllocatorOptions) *TicketAllocator {
	if opts.Stride <= 0 {
		opts.Stride = defaultIDStride
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &TicketAllocator{
		repo:       repo,
		stride:     opts.Stride,
		maxRetries: opts.MaxRetries,
		width:      opts.Width,
		counters:   make(map[string]int64),
	}
}

// Seed loads the counter for prefix. Allocate seeds lazily; calling Seed at
// startup surfaces store errors before the first requester does.
func (a *TicketAllocator) Seed(ctx context.Context, prefix string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seedLocked(ctx, prefix)
}

// seedLocked runs the store query under a.mu so concurrent first callers see one seed.
func (a *TicketAllocator) seedLocked(ctx context.Context, prefix string) error {
	if _, ok := a.counters[prefix]; ok {
		return nil
	}
	maxID, found, err := a.repo.MaxTicketID(ctx, prefix)
	if err != nil {
		return fmt.Errorf("%w: seed allocator for %q: %v", ErrPersistence, prefix, err)
	}
	var start int64
	if found {
		if n, ok := repositories.TicketSuffix(prefix, maxID); ok {
			start = n + a.stride
		}
	}
	a.counters[prefix] = start
	log.Printf("[alloc][seed] prefix=%q max=%q counter=%d", prefix, maxID, start)
	return nil
}

func (a *TicketAllocator) next(ctx context.Context, prefix string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.seedLocked(ctx, prefix); err != nil {
		return "", err
	}
	a.counters[prefix]++
	n := a.counters[prefix]
	if a.width > 0 {
		return fmt.Sprintf("%s%0*d", prefix, a.width, n), nil
	}
	return prefix + strconv.FormatInt(n, 10), nil
}

// Allocate returns a folio not present in the store.
func (a *TicketAllocator) Allocate(ctx context.Context, prefix string) (string, error) {
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		id, err := a.next(ctx, prefix)
		if err != nil {
			return "", err
		}
		exists, err := a.repo.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("%w: check folio %s: %v", ErrPersistence, id, err)
		}
		if !exists {
			return id, nil
		}
		log.Printf("[alloc][collision] folio=%s attempt=%d/%d", id, attempt, a.maxRetries)
	}
	return "", fmt.Errorf("%w: prefix %q after %d attempts", ErrAllocationExhausted, prefix, a.maxRetries)
}
