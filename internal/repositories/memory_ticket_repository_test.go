package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"permitbot/internal/models"
)

func newTicket(id string, requester int64) *models.Ticket {
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	return &models.Ticket{
		ID:          id,
		Prefix:      "91",
		Status:      models.TicketPending,
		RequesterID: requester,
		CreatedAt:   now,
		DeadlineAt:  now.Add(2 * time.Hour),
		Fields:      map[string]string{"marca": "NISSAN"},
	}
}

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()

	if err := repo.Insert(ctx, newTicket("911", 42)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, newTicket("911", 42)); err == nil {
		t.Fatal("duplicate insert should fail")
	}

	got, err := repo.Get(ctx, "911")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	got.Fields["marca"] = "changed"
	again, _ := repo.Get(ctx, "911")
	if again.Fields["marca"] != "NISSAN" {
		t.Fatal("Get must return a copy")
	}

	at := time.Now()
	if err := repo.UpdateStatus(ctx, "911", models.TicketConfirmed, models.StatusMeta{ConfirmedBy: "admin", ConfirmedAt: &at}); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, _ := repo.ListPending(ctx)
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}

	if err := repo.Delete(ctx, "911"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.Get(ctx, "911"); got != nil {
		t.Fatal("ticket still present after delete")
	}
	if repo.HasDraft("911") {
		t.Fatal("draft still present after delete")
	}
	if ok, _ := repo.Exists(ctx, "911"); !ok {
		t.Fatal("folio ledger must keep deleted ids")
	}
}

func TestMemoryRepositoryMaxTicketID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()

	if _, found, _ := repo.MaxTicketID(ctx, "91"); found {
		t.Fatal("empty store reported a max id")
	}
	repo.Reserve("91", "919")
	repo.Reserve("91", "9110")
	repo.Reserve("9", "99999")

	id, found, err := repo.MaxTicketID(ctx, "91")
	if err != nil || !found || id != "9110" {
		t.Fatalf("max = %q %v %v, want 9110", id, found, err)
	}
}

func TestMemoryRepositoryInjectedFailures(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	boom := errors.New("boom")
	repo.InjectFailures(Failures{Insert: boom})

	if err := repo.Insert(ctx, newTicket("911", 1)); !errors.Is(err, boom) {
		t.Fatalf("insert err = %v", err)
	}
	repo.InjectFailures(Failures{})
	if err := repo.Insert(ctx, newTicket("911", 1)); err != nil {
		t.Fatalf("insert after clear: %v", err)
	}
}

func TestTicketSuffix(t *testing.T) {
	cases := []struct {
		prefix, id string
		want       int64
		ok         bool
	}{
		{"91", "911", 1, true},
		{"91", "91000042", 42, true},
		{"91", "91", 0, false},
		{"91", "92", 0, false},
		{"05", "05A1", 0, false},
	}
	for _, c := range cases {
		got, ok := TicketSuffix(c.prefix, c.id)
		if got != c.want || ok != c.ok {
			t.Fatalf("TicketSuffix(%q, %q) = %d %v, want %d %v", c.prefix, c.id, got, ok, c.want, c.ok)
		}
	}
}
