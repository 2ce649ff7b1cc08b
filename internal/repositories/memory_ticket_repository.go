package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"permitbot/internal/models"
)

// MemoryTicketRepository keeps tickets in process memory. It backs the
// service when no database URL is configured and doubles as the test store.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	folios  map[string]string // id -> prefix, never deleted
	tickets map[string]*models.Ticket
	drafts  map[string]map[string]string

	failInsert error
	failUpdate error
	failDelete error
	failExists error
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		folios:  make(map[string]string),
		tickets: make(map[string]*models.Ticket),
		drafts:  make(map[string]map[string]string),
	}
}

// Failures makes subsequent calls of the matching operations return the
// given errors. Nil clears an injected failure.
type Failures struct {
	Insert, Update, Delete, Exists error
}

func (r *MemoryTicketRepository) InjectFailures(f Failures) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInsert, r.failUpdate, r.failDelete, r.failExists = f.Insert, f.Update, f.Delete, f.Exists
}

// Reserve records an issued folio without a ticket, as an id issued before a restart would be.
func (r *MemoryTicketRepository) Reserve(prefix, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folios[id] = prefix
}

func (r *MemoryTicketRepository) Insert(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return r.failInsert
	}
	if _, ok := r.tickets[t.ID]; ok {
		return fmt.Errorf("insert ticket %s: duplicate id", t.ID)
	}
	r.folios[t.ID] = t.Prefix
	c := t.Clone()
	r.drafts[t.ID] = c.Fields
	r.tickets[t.ID] = c
	return nil
}

func (r *MemoryTicketRepository) UpdateStatus(_ context.Context, id string, status models.TicketStatus, meta models.StatusMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	t, ok := r.tickets[id]
	if !ok {
		return fmt.Errorf("update ticket status: %s not found", id)
	}
	t.Status = status
	t.ConfirmedBy = meta.ConfirmedBy
	t.ConfirmedAt = meta.ConfirmedAt
	t.ProofRef = meta.ProofRef
	return nil
}

func (r *MemoryTicketRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return r.failDelete
	}
	delete(r.tickets, id)
	delete(r.drafts, id)
	return nil
}

func (r *MemoryTicketRepository) MaxTicketID(_ context.Context, prefix string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		best  string
		bestN int64 = -1
	)
	for id, p := range r.folios {
		if p != prefix {
			continue
		}
		if n, ok := TicketSuffix(prefix, id); ok && n > bestN {
			best, bestN = id, n
		}
	}
	return best, bestN >= 0, nil
}

func (r *MemoryTicketRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failExists != nil {
		return false, r.failExists
	}
	_, ok := r.folios[id]
	return ok, nil
}

func (r *MemoryTicketRepository) Get(_ context.Context, id string) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (r *MemoryTicketRepository) ListPending(_ context.Context) ([]*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*models.Ticket
	for _, t := range r.tickets {
		if t.Status == models.TicketPending {
			res = append(res, t.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// HasDraft reports whether the draft record of id is still stored.
func (r *MemoryTicketRepository) HasDraft(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drafts[id]
	return ok
}
