package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"permitbot/internal/clock"
	"permitbot/internal/models"
	"permitbot/internal/repositories"
)

const storeCallTimeout = 10 * time.Second

// Notifier delivers an outbound text to a requester. Errors are logged by
// the caller and never change ticket state.
type Notifier interface {
	Notify(ctx context.Context, requesterID int64, text string) error
}

// ReminderPlan is the payment window and the offsets before its end at
// which a reminder goes out.
type ReminderPlan struct {
	Window  time.Duration
	Offsets []time.Duration
}

// NewReminderPlan drops offsets outside (0, window) and orders the rest so
// the earliest checkpoint comes first.
func NewReminderPlan(window time.Duration, offsets []time.Duration) ReminderPlan {
	var keep []time.Duration
	for _, off := range offsets {
		if off > 0 && off < window {
			keep = append(keep, off)
		}
	}
	sort.Slice(keep, func(i, j int) bool { return keep[i] > keep[j] })
	return ReminderPlan{Window: window, Offsets: keep}
}

// ConfirmOutcome is the result of a confirmation attempt.
type ConfirmOutcome string

const (
	OutcomeConfirmed       ConfirmOutcome = "CONFIRMED"
	OutcomeNotFound        ConfirmOutcome = "NOT_FOUND"
	OutcomeAlreadyResolved ConfirmOutcome = "ALREADY_RESOLVED"
)

type timerHandle struct {
	cancel    context.CancelFunc
	startedAt time.Time

	// dispatch is held from claim to send of a reminder or expiry notice,
	// and by Confirm before it unregisters the handle.
	dispatch sync.Mutex
}

// Lifecycle owns the PENDING tickets of the process and one timer goroutine
// per ticket. The pending set and the timer registry change together under
// mu; a woken timer acts only if its handle is still the registered one, so
// a confirm that returned before the wake-up wins every race. Ids that
// reached CONFIRMED or REVOKED are remembered and never armed again.
type Lifecycle struct {
	repo   repositories.TicketRepository
	notify Notifier
	clock  clock.Clock
	plan   ReminderPlan

	mu      sync.Mutex
	pending map[string]*models.Ticket
	timers   map[string]*timerHandle
	terminal map[string]struct{}
	wg       sync.WaitGroup

	onConfirm func(t *models.Ticket)
	onExpire  func(t *models.Ticket)
}

func NewLifecycle(repo repositories.TicketRepository, notify Notifier, clk clock.Clock, plan ReminderPlan) *Lifecycle {
	if clk == nil {
		clk = clock.Real()
	}
	return &Lifecycle{
		repo:    repo,
		notify:  notify,
		clock:   clk,
		plan:    plan,
		pending:  make(map[string]*models.Ticket),
		timers:   make(map[string]*timerHandle),
		terminal: make(map[string]struct{}),
	}
}

// OnConfirm registers a hook run after every successful confirmation.
func (l *Lifecycle) OnConfirm(f func(t *models.Ticket)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onConfirm = f
}

// OnExpire registers a hook run after a ticket was revoked and purged.
func (l *Lifecycle) OnExpire(f func(t *models.Ticket)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onExpire = f
}

func (l *Lifecycle) Plan() ReminderPlan { return l.plan }

// Start tracks a PENDING ticket and arms its timer from t.DeadlineAt.
// Returns false, and does nothing, when the ticket already has a timer, is
// not PENDING, or was already confirmed or revoked by this lifecycle.
func (l *Lifecycle) Start(t *models.Ticket) bool {
	if t == nil || t.Status != models.TicketPending {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[t.ID]; ok {
		return false
	}
	if _, done := l.terminal[t.ID]; done {
		log.Printf("[lifecycle][start][skip] folio=%s already resolved", t.ID)
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &timerHandle{cancel: cancel, startedAt: l.clock.Now()}
	l.pending[t.ID] = t.Clone()
	l.timers[t.ID] = h

	l.wg.Add(1)
	go l.run(ctx, h, t.ID, t.DeadlineAt)
	return true
}

func (l *Lifecycle) run(ctx context.Context, h *timerHandle, id string, deadline time.Time) {
	defer l.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[lifecycle][timer][panic] folio=%s: %v", id, r)
		}
	}()

	for _, off := range l.plan.Offsets {
		at := deadline.Add(-off)
		if at.Before(h.startedAt) {
			continue
		}
		if !l.sleepUntil(ctx, at) {
			return
		}
		if !l.clock.Now().Before(deadline) {
			break
		}
		l.remind(h, id, off)
	}
	if !l.sleepUntil(ctx, deadline) {
		return
	}
	l.expire(h, id)
}

// sleepUntil returns false when ctx was cancelled first.
func (l *Lifecycle) sleepUntil(ctx context.Context, at time.Time) bool {
	d := at.Sub(l.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := l.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// claimLocked returns a copy of the ticket when h still owns it.
func (l *Lifecycle) claimLocked(h *timerHandle, id string) (*models.Ticket, bool) {
	if l.timers[id] != h {
		return nil, false
	}
	t, ok := l.pending[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (l *Lifecycle) remind(h *timerHandle, id string, left time.Duration) {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()
	l.mu.Lock()
	t, ok := l.claimLocked(h, id)
	l.mu.Unlock()
	if !ok {
		return
	}
	log.Printf("[lifecycle][remind] folio=%s requester=%d left=%s", id, t.RequesterID, left)
	l.send(t.RequesterID, reminderText(t.ID, left))
}

func (l *Lifecycle) expire(h *timerHandle, id string) {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()
	l.mu.Lock()
	t, ok := l.claimLocked(h, id)
	if ok {
		delete(l.pending, id)
		delete(l.timers, id)
		l.terminal[id] = struct{}{}
	}
	hook := l.onExpire
	l.mu.Unlock()
	if !ok {
		return
	}
	log.Printf("[lifecycle][expire] folio=%s requester=%d", id, t.RequesterID)

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := l.repo.Delete(ctx, id); err != nil {
		log.Printf("[lifecycle][expire][err] delete folio=%s: %v", id, err)
	}
	l.send(t.RequesterID, expiredText(t.ID))
	if hook != nil {
		t.Status = models.TicketRevoked
		hook(t)
	}
}

// Confirm moves a PENDING ticket to CONFIRMED, stops its timer, persists the
// status and notifies the requester. ConfirmedAt is set here. A reminder
// already being sent for the ticket finishes before the confirmation notice.
func (l *Lifecycle) Confirm(ctx context.Context, id string, meta models.StatusMeta) (*models.Ticket, ConfirmOutcome) {
	l.mu.Lock()
	h := l.timers[id]
	l.mu.Unlock()
	if h != nil {
		h.dispatch.Lock()
		defer h.dispatch.Unlock()
	}

	l.mu.Lock()
	t, ok := l.pending[id]
	if ok {
		delete(l.pending, id)
		if cur, hok := l.timers[id]; hok {
			cur.cancel()
			delete(l.timers, id)
		}
		l.terminal[id] = struct{}{}
	}
	hook := l.onConfirm
	l.mu.Unlock()

	if !ok {
		return l.resolved(ctx, id)
	}

	now := l.clock.Now()
	meta.ConfirmedAt = &now
	t.Status = models.TicketConfirmed
	t.ConfirmedBy = meta.ConfirmedBy
	t.ConfirmedAt = meta.ConfirmedAt
	t.ProofRef = meta.ProofRef
	log.Printf("[lifecycle][confirm] folio=%s requester=%d by=%q", id, t.RequesterID, meta.ConfirmedBy)

	if err := l.repo.UpdateStatus(ctx, id, models.TicketConfirmed, meta); err != nil {
		log.Printf("[lifecycle][confirm][err] update folio=%s: %v", id, err)
	}
	l.send(t.RequesterID, confirmedText(t.ID))
	if hook != nil {
		hook(t.Clone())
	}
	return t, OutcomeConfirmed
}

// resolved classifies an id the lifecycle no longer tracks.
func (l *Lifecycle) resolved(ctx context.Context, id string) (*models.Ticket, ConfirmOutcome) {
	t, err := l.repo.Get(ctx, id)
	if err != nil {
		log.Printf("[lifecycle][confirm][err] lookup folio=%s: %v", id, err)
		return nil, OutcomeNotFound
	}
	if t != nil && t.Status == models.TicketConfirmed {
		return t, OutcomeAlreadyResolved
	}
	return nil, OutcomeNotFound
}

func (l *Lifecycle) send(requesterID int64, text string) {
	if l.notify == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if err := l.notify.Notify(ctx, requesterID, text); err != nil {
		log.Printf("[lifecycle][notify][err] requester=%d: %v", requesterID, err)
	}
}

// Get returns a copy of a tracked PENDING ticket.
func (l *Lifecycle) Get(id string) (*models.Ticket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.pending[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Pending lists the PENDING tickets of requesterID, oldest first. A zero
// requesterID lists every pending ticket.
func (l *Lifecycle) Pending(requesterID int64) []*models.Ticket {
	l.mu.Lock()
	var res []*models.Ticket
	for _, t := range l.pending {
		if requesterID == 0 || t.RequesterID == requesterID {
			res = append(res, t.Clone())
		}
	}
	l.mu.Unlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}

func (l *Lifecycle) ActiveTimers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Shutdown cancels every timer and waits for the goroutines to exit.
// Tickets stay PENDING; they are resumed from the store on next start.
func (l *Lifecycle) Shutdown() {
	l.mu.Lock()
	for id, h := range l.timers {
		h.cancel()
		delete(l.timers, id)
	}
	l.mu.Unlock()
	l.wg.Wait()
}
