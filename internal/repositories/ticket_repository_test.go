package repositories

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"permitbot/internal/models"
)

// Runs only against a disposable database: PERMITBOT_TEST_DSN=postgres://...
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PERMITBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("PERMITBOT_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, q := range []string{`DELETE FROM ticket_drafts`, `DELETE FROM tickets`, `DELETE FROM ticket_folios`} {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("reset: %v", err)
		}
	}
	return db
}

func TestPostgresTicketRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(db)

	tk := newTicket("91300", 42)
	tk.CreatedAt = time.Now().UTC().Truncate(time.Second)
	tk.DeadlineAt = tk.CreatedAt.Add(2 * time.Hour)
	if err := repo.Insert(ctx, tk); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, newTicket("91299", 42)); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	id, found, err := repo.MaxTicketID(ctx, "91")
	if err != nil || !found || id != "91300" {
		t.Fatalf("max = %q %v %v", id, found, err)
	}

	got, err := repo.Get(ctx, "91300")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Fields["marca"] != "NISSAN" || got.Prefix != "91" || got.Status != models.TicketPending {
		t.Fatalf("unexpected ticket %+v", got)
	}

	pending, err := repo.ListPending(ctx)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending = %d %v", len(pending), err)
	}

	at := time.Now().UTC()
	if err := repo.UpdateStatus(ctx, "91300", models.TicketConfirmed, models.StatusMeta{ConfirmedBy: models.ConfirmedByAdmin, ConfirmedAt: &at}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.Delete(ctx, "91299"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.Get(ctx, "91299"); got != nil {
		t.Fatal("deleted ticket still readable")
	}
	if ok, _ := repo.Exists(ctx, "91299"); !ok {
		t.Fatal("folio ledger lost a deleted id")
	}
}
