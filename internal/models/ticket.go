// internal/models/ticket.go
package models

import "time"

// TicketStatus is the lifecycle state of a permit folio.
type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketConfirmed TicketStatus = "CONFIRMED"
	TicketRevoked   TicketStatus = "REVOKED"
)

// Terminal reports whether no further transition is allowed.
func (s TicketStatus) Terminal() bool {
	return s == TicketConfirmed || s == TicketRevoked
}

// ConfirmedByAdmin marks an operator override in the audit columns.
const ConfirmedByAdmin = "admin"

// Ticket is an issued folio. Fields is the opaque payload collected by the
// conversation; the lifecycle never interprets it.
type Ticket struct {
	ID          string            `json:"id"`
	Prefix      string            `json:"prefix"`
	Status      TicketStatus      `json:"status"`
	RequesterID int64             `json:"requester_id"`
	CreatedAt   time.Time         `json:"created_at"`
	DeadlineAt  time.Time         `json:"deadline_at"`
	Fields      map[string]string `json:"fields"`
	DocumentURL string            `json:"document_url,omitempty"`
	ConfirmedBy string            `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
	ProofRef    string            `json:"proof_ref,omitempty"`
}

// Clone returns a deep copy safe to hand out of a locked registry.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.Fields != nil {
		c.Fields = make(map[string]string, len(t.Fields))
		for k, v := range t.Fields {
			c.Fields[k] = v
		}
	}
	if t.ConfirmedAt != nil {
		at := *t.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}

// StatusMeta carries the audit columns written together with a status change.
type StatusMeta struct {
	ConfirmedBy string
	ConfirmedAt *time.Time
	ProofRef    string
}
