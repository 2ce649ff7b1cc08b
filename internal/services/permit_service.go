package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"permitbot/internal/clock"
	"permitbot/internal/models"
	"permitbot/internal/repositories"
)

const (
	defaultInsertAttempts = 4
	defaultInsertDelay    = 600 * time.Millisecond
)

// PermitService is the inbound surface of the controller: it issues folios
// from collected fields and resolves payment proofs against them.
type PermitService struct {
	repo  repositories.TicketRepository
	alloc *TicketAllocator
	life  *Lifecycle
	docs  DocumentRenderer
	clock clock.Clock

	prefix         string
	insertAttempts int
	insertDelay    time.Duration
}

type PermitOptions struct {
	Prefix         string
	InsertAttempts int
	InsertDelay    time.Duration
}

func NewPermitService(repo repositories.TicketRepository, alloc *TicketAllocator, life *Lifecycle, docs DocumentRenderer, clk clock.Clock, opts PermitOptions) *PermitService {
	if clk == nil {
		clk = clock.Real()
	}
	if opts.InsertAttempts <= 0 {
		opts.InsertAttempts = defaultInsertAttempts
	}
	if opts.InsertDelay <= 0 {
		opts.InsertDelay = defaultInsertDelay
	}
	s := &PermitService{
		repo:           repo,
		alloc:          alloc,
		life:           life,
		docs:           docs,
		clock:          clk,
		prefix:         opts.Prefix,
		insertAttempts: opts.InsertAttempts,
		insertDelay:    opts.InsertDelay,
	}
	life.OnExpire(s.discardDocument)
	return s
}

// discardDocument stops serving the permit of a revoked folio.
func (s *PermitService) discardDocument(t *models.Ticket) {
	if s.docs == nil || t.DocumentURL == "" {
		return
	}
	if err := s.docs.Discard(t); err != nil {
		log.Printf("[permit][discard][err] folio=%s: %v", t.ID, err)
		return
	}
	log.Printf("[permit][discard] folio=%s", t.ID)
}

func (s *PermitService) Prefix() string { return s.prefix }

// IsFolio reports whether w has the shape of a folio of this service.
func (s *PermitService) IsFolio(w string) bool {
	_, ok := repositories.TicketSuffix(s.prefix, w)
	return ok
}

// Window is the payment window of new folios.
func (s *PermitService) Window() time.Duration { return s.life.Plan().Window }

// IssuedTicket is a freshly persisted PENDING folio. Document is nil when
// rendering failed.
type IssuedTicket struct {
	Ticket   *models.Ticket
	Document *RenderedDocument
}

// Caption is the requester-facing summary sent with the permit.
func (it *IssuedTicket) Caption(window time.Duration) string {
	url := ""
	if it.Document != nil {
		url = it.Document.URL
	}
	return issuedText(it.Ticket.ID, it.Ticket.Fields, window, url)
}

// StartApplication allocates a folio, renders its permit, persists it as
// PENDING and arms its payment window.
func (s *PermitService) StartApplication(ctx context.Context, requesterID int64, fields map[string]string) (*IssuedTicket, error) {
	id, err := s.alloc.Allocate(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t := &models.Ticket{
		ID:          id,
		Prefix:      s.prefix,
		Status:      models.TicketPending,
		RequesterID: requesterID,
		CreatedAt:   now,
		DeadlineAt:  now.Add(s.life.Plan().Window),
		Fields:      copyFields(fields),
	}

	var doc *RenderedDocument
	if s.docs != nil {
		doc, err = s.docs.Render(t)
		if err != nil {
			log.Printf("[permit][render][err] folio=%s: %v", id, err)
			doc = nil
		} else {
			t.DocumentURL = doc.URL
		}
	}

	if err := s.insertWithRetry(ctx, t); err != nil {
		return nil, err
	}
	s.life.Start(t)
	log.Printf("[permit][issued] folio=%s requester=%d deadline=%s", id, requesterID, t.DeadlineAt.Format(time.RFC3339))
	return &IssuedTicket{Ticket: t.Clone(), Document: doc}, nil
}

func (s *PermitService) insertWithRetry(ctx context.Context, t *models.Ticket) error {
	var last error
	for i := 0; i < s.insertAttempts; i++ {
		if last = s.repo.Insert(ctx, t); last == nil {
			return nil
		}
		log.Printf("[permit][insert][retry %d/%d] folio=%s: %v", i+1, s.insertAttempts, t.ID, last)
		if i == s.insertAttempts-1 {
			break
		}
		timer := s.clock.NewTimer(s.insertDelay * time.Duration(i+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: insert folio %s: %v", ErrPersistence, t.ID, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: insert folio %s: %v", ErrPersistence, t.ID, last)
}

type ProofStatus string

const (
	ProofConfirmed ProofStatus = "CONFIRMED"
	ProofAmbiguous ProofStatus = "PROOF_AMBIGUOUS"
)

// ProofResult is the outcome of a payment proof. Candidates lists the
// pending folios when the proof could not be matched to a single one.
type ProofResult struct {
	Status     ProofStatus
	Ticket     *models.Ticket
	Candidates []string
}

// SubmitProof confirms the only PENDING folio of the requester.
func (s *PermitService) SubmitProof(ctx context.Context, requesterID int64, attachmentRef string) (*ProofResult, error) {
	pending := s.life.Pending(requesterID)
	switch len(pending) {
	case 0:
		return nil, fmt.Errorf("proof from requester %d: %w", requesterID, ErrUnknownTicket)
	case 1:
		return s.confirmProof(ctx, requesterID, pending[0].ID, attachmentRef)
	}
	ids := make([]string, 0, len(pending))
	for _, t := range pending {
		ids = append(ids, t.ID)
	}
	log.Printf("[permit][proof][ambiguous] requester=%d candidates=%s", requesterID, strings.Join(ids, ","))
	return &ProofResult{Status: ProofAmbiguous, Candidates: ids}, nil
}

// SubmitProofForTicket confirms ticketID when it is PENDING and owned by
// the requester.
func (s *PermitService) SubmitProofForTicket(ctx context.Context, requesterID int64, ticketID, attachmentRef string) (*ProofResult, error) {
	t, ok := s.life.Get(ticketID)
	if !ok || t.RequesterID != requesterID {
		return nil, fmt.Errorf("proof for folio %s: %w", ticketID, ErrUnknownTicket)
	}
	return s.confirmProof(ctx, requesterID, ticketID, attachmentRef)
}

func (s *PermitService) confirmProof(ctx context.Context, requesterID int64, id, ref string) (*ProofResult, error) {
	t, outcome := s.life.Confirm(ctx, id, models.StatusMeta{ProofRef: ref})
	if outcome != OutcomeConfirmed {
		// lost the race against expiry or another confirmation
		return nil, fmt.Errorf("proof for folio %s: %w", id, ErrUnknownTicket)
	}
	log.Printf("[permit][proof] folio=%s requester=%d ref=%s", id, requesterID, ref)
	return &ProofResult{Status: ProofConfirmed, Ticket: t}, nil
}

// Resume re-arms timers for every PENDING folio left in the store.
func (s *PermitService) Resume(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list pending: %v", ErrPersistence, err)
	}
	n := 0
	for _, t := range pending {
		if s.life.Start(t) {
			n++
		}
	}
	log.Printf("[permit][resume] pending=%d", n)
	return n, nil
}

// Pending lists the requester's PENDING folios, oldest first.
func (s *PermitService) Pending(requesterID int64) []*models.Ticket {
	return s.life.Pending(requesterID)
}

// Lookup returns a folio in any state, nil when unknown or purged.
func (s *PermitService) Lookup(ctx context.Context, id string) (*models.Ticket, error) {
	if t, ok := s.life.Get(id); ok {
		return t, nil
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get folio %s: %v", ErrPersistence, id, err)
	}
	return t, nil
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
