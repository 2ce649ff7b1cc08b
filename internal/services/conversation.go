package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
)

// Step is one question of the permit form.
type Step struct {
	Key    string
	Prompt string
}

var PermitSteps = []Step{
	{"marca", "Marca del vehículo:"},
	{"linea", "Línea (modelo/versión):"},
	{"anio", "Año (4 dígitos):"},
	{"serie", "Serie (VIN):"},
	{"motor", "Motor:"},
	{"nombre", "Nombre del solicitante:"},
}

type draft struct {
	step   int
	fields map[string]string
}

// Reply is what the requester gets back for one message. Issued is set when
// the last answer produced a folio.
type Reply struct {
	Text   string
	Issued *IssuedTicket
}

// Conversation walks a requester through PermitSteps while holding the
// submission lock, then hands the fields to StartApplication.
type Conversation struct {
	lock    *SubmissionLock
	permits *PermitService
	steps   []Step

	mu     sync.Mutex
	drafts map[int64]*draft
}

func NewConversation(lock *SubmissionLock, permits *PermitService) *Conversation {
	c := &Conversation{
		lock:    lock,
		permits: permits,
		steps:   PermitSteps,
		drafts:  make(map[int64]*draft),
	}
	lock.OnExpire(c.drop)
	return c
}

// Begin opens a flow. ErrLockBusy while another flow of the requester is live.
func (c *Conversation) Begin(requesterID int64) (string, error) {
	if !c.lock.Acquire(requesterID) {
		return MsgBusy, ErrLockBusy
	}
	c.mu.Lock()
	c.drafts[requesterID] = &draft{fields: make(map[string]string, len(c.steps))}
	c.mu.Unlock()
	log.Printf("[conv][begin] requester=%d", requesterID)
	return c.steps[0].Prompt, nil
}

// Active reports whether a draft exists for the requester.
func (c *Conversation) Active(requesterID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.drafts[requesterID]
	return ok
}

// Answer records text for the current step. The bool is false when the
// requester has no flow, so the caller can fall through to other handlers.
func (c *Conversation) Answer(ctx context.Context, requesterID int64, text string) (*Reply, bool) {
	c.mu.Lock()
	d, ok := c.drafts[requesterID]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if !c.lock.Busy(requesterID) {
		delete(c.drafts, requesterID)
		c.mu.Unlock()
		log.Printf("[conv][stale] requester=%d step=%d", requesterID, d.step)
		return &Reply{Text: MsgFlowExpired}, true
	}
	c.lock.Bump(requesterID)
	d.fields[c.steps[d.step].Key] = strings.TrimSpace(text)
	d.step++
	if d.step < len(c.steps) {
		prompt := c.steps[d.step].Prompt
		c.mu.Unlock()
		return &Reply{Text: prompt}, true
	}
	delete(c.drafts, requesterID)
	fields := d.fields
	c.mu.Unlock()

	defer c.lock.Release(requesterID)
	issued, err := c.permits.StartApplication(ctx, requesterID, fields)
	if err != nil {
		log.Printf("[conv][issue][err] requester=%d: %v", requesterID, err)
		return &Reply{Text: issueErrorText(err)}, true
	}
	return &Reply{Issued: issued}, true
}

// Cancel drops the draft and releases the lock. Safe without a flow.
func (c *Conversation) Cancel(requesterID int64) {
	c.drop(requesterID)
	c.lock.Release(requesterID)
}

func (c *Conversation) drop(requesterID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, requesterID)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.drafts)
}

func issueErrorText(err error) string {
	if errors.Is(err, ErrAllocationExhausted) {
		return MsgNoFolios
	}
	return MsgIssueFailed
}
