package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"permitbot/internal/models"
	"permitbot/internal/services"
)

func (f *fixture) login(t *testing.T, user, pass string) (string, int) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": user, "password": pass})
	w := f.do(t, http.MethodPost, "/admin/login", "", bytes.NewReader(body))
	var resp struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Token, w.Code
}

func decodeOutcome(t *testing.T, body []byte) services.AdminOutcome {
	t.Helper()
	var out services.AdminOutcome
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode outcome: %v (%s)", err, body)
	}
	return out
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	if _, code := f.login(t, "luis", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong password -> %d", code)
	}
	if _, code := f.login(t, "nobody", "s3cret"); code != http.StatusUnauthorized {
		t.Fatalf("unknown user -> %d", code)
	}
	w := f.do(t, http.MethodPost, "/admin/login", "", bytes.NewReader([]byte(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body -> %d", w.Code)
	}
	token, code := f.login(t, "LUIS", "s3cret")
	if code != http.StatusOK || token == "" {
		t.Fatalf("login -> %d %q", code, token)
	}
}

func TestAdminTicketsAPI(t *testing.T) {
	f := newFixture(t)
	id := f.issue(t, 5)
	op, _ := f.login(t, "luis", "s3cret")
	viewer, _ := f.login(t, "ana", "look")

	if w := f.do(t, http.MethodGet, "/admin/tickets", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list -> %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/admin/tickets", viewer, nil)
	var list []models.Ticket
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 || list[0].ID != id {
		t.Fatalf("list -> %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/admin/tickets/"+id+"/document", viewer, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Disposition"), id) {
		t.Fatalf("document -> %d %q", w.Code, w.Header().Get("Content-Disposition"))
	}

	if w := f.do(t, http.MethodPost, "/admin/tickets/"+id+"/confirm", viewer, nil); w.Code != http.StatusForbidden {
		t.Fatalf("viewer confirm -> %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/admin/tickets/"+id+"/confirm", op, nil)
	if out := decodeOutcome(t, w.Body.Bytes()); w.Code != http.StatusOK || out.Result != services.AdminConfirmed {
		t.Fatalf("confirm -> %d %+v", w.Code, out)
	}
	w = f.do(t, http.MethodPost, "/admin/tickets/"+id+"/confirm", op, nil)
	if out := decodeOutcome(t, w.Body.Bytes()); w.Code != http.StatusOK || out.Result != services.AdminAlreadyResolved {
		t.Fatalf("replay -> %d %+v", w.Code, out)
	}
	if w := f.do(t, http.MethodPost, "/admin/tickets/05999999/confirm", op, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown -> %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/admin/tickets/"+id, viewer, nil)
	var got models.Ticket
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if w.Code != http.StatusOK || got.Status != models.TicketConfirmed || got.ConfirmedBy != models.ConfirmedByAdmin {
		t.Fatalf("get -> %d %+v", w.Code, got)
	}
	if w := f.do(t, http.MethodGet, "/admin/tickets/nope", viewer, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get unknown -> %d", w.Code)
	}
}

func TestAdminCommandAPI(t *testing.T) {
	f := newFixture(t)
	id := f.issue(t, 5)
	op, _ := f.login(t, "luis", "s3cret")

	cmd := func(raw string) (int, services.AdminOutcome) {
		body, _ := json.Marshal(map[string]string{"command": raw})
		w := f.do(t, http.MethodPost, "/admin/command", op, bytes.NewReader(body))
		return w.Code, decodeOutcome(t, w.Body.Bytes())
	}
	if code, out := cmd("/validar"); code != http.StatusBadRequest || out.Result != services.AdminMalformed {
		t.Fatalf("malformed -> %d %+v", code, out)
	}
	if code, out := cmd("/validar " + id); code != http.StatusOK || out.Result != services.AdminConfirmed {
		t.Fatalf("command -> %d %+v", code, out)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)
	f.text(t, 1, "/permiso")
	f.issue(t, 2)

	w := f.do(t, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("health -> %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodGet, "/debug", "", nil)
	var dbg map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &dbg)
	if dbg["active_locks"] != float64(1) || dbg["active_timers"] != float64(1) || dbg["active_drafts"] != float64(1) {
		t.Fatalf("debug = %v", dbg)
	}
}
