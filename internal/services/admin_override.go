package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"permitbot/internal/authz"
	"permitbot/internal/models"
)

const DefaultCommandPrefix = "/validar"

// AdminResult classifies an override attempt. Overrides never return errors;
// every failure mode is one of these values.
type AdminResult string

const (
	AdminConfirmed       AdminResult = "CONFIRMED"
	AdminNotFound        AdminResult = "NOT_FOUND"
	AdminAlreadyResolved AdminResult = "ALREADY_RESOLVED"
	AdminMalformed       AdminResult = "MALFORMED"
	AdminUnauthorized    AdminResult = "UNAUTHORIZED"
)

// OperatorSource tells how an operator was authenticated.
type OperatorSource string

const (
	SourceTelegram OperatorSource = "telegram"
	SourceHTTP     OperatorSource = "http"
)

// Operator is the caller of an override. Telegram operators are identified by
// chat id; HTTP operators carry the role from a verified token.
type Operator struct {
	Source   OperatorSource
	ChatID   int64
	Username string
	RoleID   int
}

func (o Operator) String() string {
	switch o.Source {
	case SourceTelegram:
		return fmt.Sprintf("telegram:%d", o.ChatID)
	case SourceHTTP:
		return "http:" + o.Username
	}
	return "anonymous"
}

type AdminOutcome struct {
	Result   AdminResult    `json:"result"`
	TicketID string         `json:"ticket_id,omitempty"`
	Ticket   *models.Ticket `json:"ticket,omitempty"`
}

var ticketIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AdminOverride lets operators confirm a PENDING folio without proof.
type AdminOverride struct {
	life    *Lifecycle
	prefix  string
	chatIDs map[int64]struct{}
	audit   EmailService
}

func NewAdminOverride(life *Lifecycle, prefix string, chatIDs []int64, audit EmailService) *AdminOverride {
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	set := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		set[id] = struct{}{}
	}
	return &AdminOverride{life: life, prefix: prefix, chatIDs: set, audit: audit}
}

func (s *AdminOverride) Prefix() string { return s.prefix }

// Authorized reports whether op may override.
func (s *AdminOverride) Authorized(op Operator) bool {
	switch op.Source {
	case SourceTelegram:
		_, ok := s.chatIDs[op.ChatID]
		return ok
	case SourceHTTP:
		return op.Username != "" && authz.CanOverride(op.RoleID)
	}
	return false
}

// IsCommand reports whether raw is addressed to the override command, even
// when malformed.
func (s *AdminOverride) IsCommand(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), strings.ToLower(s.prefix))
}

// ParseAdminCommand extracts the folio from "<prefix>[ ]<id>". A Telegram
// "@botname" suffix on the prefix is accepted.
func ParseAdminCommand(prefix, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return "", false
	}
	rest := raw[len(prefix):]
	if strings.HasPrefix(rest, "@") {
		end := strings.IndexAny(rest, " \t\n")
		if end < 0 {
			return "", false
		}
		rest = rest[end:]
	}
	fields := strings.Fields(rest)
	if len(fields) != 1 || !ticketIDPattern.MatchString(fields[0]) {
		return "", false
	}
	return fields[0], true
}

func (s *AdminOverride) AdminCommand(ctx context.Context, op Operator, raw string) AdminOutcome {
	if !s.Authorized(op) {
		log.Printf("[admin][command][denied] op=%s", op)
		return AdminOutcome{Result: AdminUnauthorized}
	}
	id, ok := ParseAdminCommand(s.prefix, raw)
	if !ok {
		return AdminOutcome{Result: AdminMalformed}
	}
	return s.confirm(ctx, op, id)
}

func (s *AdminOverride) AdminConfirm(ctx context.Context, op Operator, ticketID string) AdminOutcome {
	if !s.Authorized(op) {
		log.Printf("[admin][confirm][denied] op=%s folio=%s", op, ticketID)
		return AdminOutcome{Result: AdminUnauthorized}
	}
	ticketID = strings.TrimSpace(ticketID)
	if !ticketIDPattern.MatchString(ticketID) {
		return AdminOutcome{Result: AdminMalformed}
	}
	return s.confirm(ctx, op, ticketID)
}

func (s *AdminOverride) confirm(ctx context.Context, op Operator, id string) AdminOutcome {
	t, outcome := s.life.Confirm(ctx, id, models.StatusMeta{ConfirmedBy: models.ConfirmedByAdmin})
	res := AdminOutcome{TicketID: id, Ticket: t}
	switch outcome {
	case OutcomeConfirmed:
		res.Result = AdminConfirmed
	case OutcomeAlreadyResolved:
		res.Result = AdminAlreadyResolved
	default:
		res.Result = AdminNotFound
	}
	log.Printf("[admin][override] op=%s folio=%s result=%s", op, id, res.Result)

	if res.Result == AdminConfirmed && s.audit != nil {
		if err := s.audit.SendOverrideAudit(op, t); err != nil {
			log.Printf("[admin][audit][err] folio=%s: %v", id, err)
		}
	}
	return res
}

// Reply is the operator-facing text of an outcome.
func (s *AdminOverride) Reply(o AdminOutcome) string {
	switch o.Result {
	case AdminConfirmed:
		return fmt.Sprintf("✅ Folio %s validado.", o.TicketID)
	case AdminAlreadyResolved:
		return fmt.Sprintf("ℹ️ El folio %s ya estaba validado.", o.TicketID)
	case AdminNotFound:
		return fmt.Sprintf("❓ Folio %s no encontrado o vencido.", o.TicketID)
	case AdminMalformed:
		return "Formato: " + s.prefix + " <folio>"
	}
	return "⛔ No autorizado."
}
