package services

import (
	"fmt"
	"html"
	"time"

	"gopkg.in/gomail.v2"

	"permitbot/internal/models"
)

// EmailService mails the audit trail of operator overrides.
type EmailService interface {
	SendOverrideAudit(op Operator, t *models.Ticket) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewEmailService returns nil when SMTP or the audit recipient is not
// configured; callers treat a nil service as "audit mail disabled".
func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail, auditTo string) EmailService {
	if smtpHost == "" || auditTo == "" {
		return nil
	}
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
		to:     auditTo,
	}
}

func (s *emailService) SendOverrideAudit(op Operator, t *models.Ticket) error {
	m := overrideAuditMessage(s.from, s.to, op, t)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send override audit email: %w", err)
	}
	return nil
}

func overrideAuditMessage(from, to string, op Operator, t *models.Ticket) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Folio %s validado manualmente", t.ID))

	at := "-"
	if t.ConfirmedAt != nil {
		at = t.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	body := fmt.Sprintf(`
		<h3>Validación manual de folio</h3>
		<p>Folio: <strong>%s</strong></p>
		<p>Solicitante: %d</p>
		<p>Operador: %s</p>
		<p>Confirmado: %s</p>
	`, html.EscapeString(t.ID), t.RequesterID, html.EscapeString(op.String()), at)

	m.SetBody("text/html", body)
	return m
}
