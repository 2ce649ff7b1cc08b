package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"permitbot/internal/models"
)

// TicketRepository is the persistence boundary of the lifecycle core.
// Get returns (nil, nil) when the ticket does not exist.
type TicketRepository interface {
	Insert(ctx context.Context, t *models.Ticket) error
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus, meta models.StatusMeta) error
	Delete(ctx context.Context, id string) error
	MaxTicketID(ctx context.Context, prefix string) (string, bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	ListPending(ctx context.Context) ([]*models.Ticket, error)
}

// TicketSuffix returns the numeric counter part of id, or false when id does
// not carry prefix followed by digits only.
func TicketSuffix(prefix, id string) (int64, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	rest := id[len(prefix):]
	if rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

type PostgresTicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *PostgresTicketRepository {
	return &PostgresTicketRepository{db: db}
}

// Insert writes the folio ledger row, the ticket and its draft in one transaction.
func (r *PostgresTicketRepository) Insert(ctx context.Context, t *models.Ticket) error {
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert ticket: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_folios (id, prefix, issued_at) VALUES ($1, $2, $3)`,
		t.ID, t.Prefix, t.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert folio: %w", err)
	}
	const q = `
		INSERT INTO tickets (id, requester_id, status, created_at, deadline_at, document_url, confirmed_by, confirmed_at, proof_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, q,
		t.ID, t.RequesterID, string(t.Status), t.CreatedAt, t.DeadlineAt,
		t.DocumentURL, t.ConfirmedBy, t.ConfirmedAt, t.ProofRef,
	); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_drafts (ticket_id, fields) VALUES ($1, $2)`,
		t.ID, fields,
	); err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert ticket: %w", err)
	}
	return nil
}

func (r *PostgresTicketRepository) UpdateStatus(ctx context.Context, id string, status models.TicketStatus, meta models.StatusMeta) error {
	const q = `
		UPDATE tickets
		SET status=$1, confirmed_by=$2, confirmed_at=$3, proof_ref=$4
		WHERE id=$5`
	res, err := r.db.ExecContext(ctx, q, string(status), meta.ConfirmedBy, meta.ConfirmedAt, meta.ProofRef, id)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update ticket status: %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Delete removes the ticket and, through the cascade, its draft. The folio
// ledger row stays so the id is never issued again.
func (r *PostgresTicketRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

func (r *PostgresTicketRepository) MaxTicketID(ctx context.Context, prefix string) (string, bool, error) {
	const q = `
		SELECT id FROM ticket_folios
		WHERE prefix = $1 AND length(id) > length($1)
		ORDER BY length(id) DESC, id DESC
		LIMIT 1`
	var id string
	err := r.db.QueryRowContext(ctx, q, prefix).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("max ticket id: %w", err)
	}
	return id, true, nil
}

func (r *PostgresTicketRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ticket_folios WHERE id=$1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("ticket exists: %w", err)
	}
	return exists, nil
}

const selectTicket = `
	SELECT t.id, f.prefix, t.requester_id, t.status, t.created_at, t.deadline_at, t.document_url,
	       t.confirmed_by, t.confirmed_at, t.proof_ref, COALESCE(d.fields, '{}'::jsonb)
	FROM tickets t
	JOIN ticket_folios f ON f.id = t.id
	LEFT JOIN ticket_drafts d ON d.ticket_id = t.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var (
		t           models.Ticket
		status      string
		confirmedAt sql.NullTime
		fields      []byte
	)
	if err := row.Scan(&t.ID, &t.Prefix, &t.RequesterID, &status, &t.CreatedAt, &t.DeadlineAt, &t.DocumentURL,
		&t.ConfirmedBy, &confirmedAt, &t.ProofRef, &fields); err != nil {
		return nil, err
	}
	t.Status = models.TicketStatus(status)
	if confirmedAt.Valid {
		at := confirmedAt.Time
		t.ConfirmedAt = &at
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &t.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func (r *PostgresTicketRepository) Get(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, selectTicket+` WHERE t.id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *PostgresTicketRepository) ListPending(ctx context.Context) ([]*models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, selectTicket+` WHERE t.status=$1 ORDER BY t.created_at`, string(models.TicketPending))
	if err != nil {
		return nil, fmt.Errorf("list pending tickets: %w", err)
	}
	defer rows.Close()

	var res []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending ticket: %w", err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending tickets: %w", err)
	}
	return res, nil
}
