package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"permitbot/internal/authz"
	"permitbot/internal/clock"
	"permitbot/internal/config"
	"permitbot/internal/handlers"
	"permitbot/internal/pdf"
	"permitbot/internal/repositories"
	"permitbot/internal/routes"
	"permitbot/internal/services"
)

var epoch = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

const (
	adminChat = 1001
	jwtSecret = "handler-test-secret"
)

type sentMessage struct {
	chatID int64
	text   string
	doc    string
}

// fakeMessenger records outbound traffic; it is both the reply channel and
// the lifecycle notifier.
type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *fakeMessenger) SendMessage(chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (m *fakeMessenger) SendDocument(chatID int64, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: caption, doc: path})
	return nil
}

func (m *fakeMessenger) Notify(_ context.Context, requesterID int64, text string) error {
	return m.SendMessage(requesterID, text)
}

// drain returns and forgets everything sent so far.
func (m *fakeMessenger) drain() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent
	m.sent = nil
	return out
}

type fixture struct {
	r       *gin.Engine
	tgh     *handlers.TelegramHandler
	tg      *fakeMessenger
	clk     *clock.FakeClock
	repo    *repositories.MemoryTicketRepository
	life    *services.Lifecycle
	permits *services.PermitService
	files   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files := t.TempDir()
	clk := clock.NewFake(epoch)
	repo := repositories.NewMemoryTicketRepository()
	tg := &fakeMessenger{}

	lock := services.NewSubmissionLock(5*time.Minute, clk)
	life := services.NewLifecycle(repo, tg, clk, services.NewReminderPlan(2*time.Hour, []time.Duration{90 * time.Minute, 30 * time.Minute}))
	t.Cleanup(life.Shutdown)
	alloc := services.NewTicketAllocator(repo, services.AllocatorOptions{Stride: 10, MaxRetries: 5, Width: 6})
	docs := services.NewDocumentService(files, "https://bot.example.org", 30, "CDMX", pdf.NewDocumentGenerator(files, "", "CDMX"))
	permits := services.NewPermitService(repo, alloc, life, docs, clk, services.PermitOptions{Prefix: "05"})
	conv := services.NewConversation(lock, permits)
	admin := services.NewAdminOverride(life, "", []int64{adminChat}, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	viewerHash, _ := bcrypt.GenerateFromPassword([]byte("look"), bcrypt.MinCost)
	adminCfg := config.AdminConfig{
		JWTSecret: jwtSecret,
		TokenTTL:  time.Hour,
		Users: []config.AdminUser{
			{Username: "Luis", PasswordHash: string(hash), RoleID: authz.RoleOperator},
			{Username: "ana", PasswordHash: string(viewerHash), RoleID: authz.RoleViewer},
		},
	}

	disabled, _ := services.NewTelegramService("")
	tgHandler := handlers.NewTelegramHandler(conv, permits, admin, tg)
	tgHandler.Sync = true

	r := gin.New()
	routes.SetupRoutes(r, []byte(jwtSecret), files,
		handlers.NewHealthHandler(disabled, lock, life, conv),
		tgHandler,
		handlers.NewAdminHandler(admin, permits, docs, adminCfg),
	)
	return &fixture{r: r, tgh: tgHandler, tg: tg, clk: clk, repo: repo, life: life, permits: permits, files: files}
}

func (f *fixture) update(t *testing.T, message map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	chat := message["chat_id"].(int64)
	delete(message, "chat_id")
	message["message_id"] = 1
	message["date"] = epoch.Unix()
	message["chat"] = map[string]any{"id": chat, "type": "private"}
	message["from"] = map[string]any{"id": chat, "is_bot": false, "first_name": "Test"}
	body, _ := json.Marshal(map[string]any{"update_id": 1, "message": message})
	return f.do(t, http.MethodPost, "/telegram/webhook", "", bytes.NewReader(body))
}

func (f *fixture) text(t *testing.T, chatID int64, text string) []sentMessage {
	t.Helper()
	if w := f.update(t, map[string]any{"chat_id": chatID, "text": text}); w.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", w.Code)
	}
	return f.tg.drain()
}

func (f *fixture) photo(t *testing.T, chatID int64, caption string) []sentMessage {
	t.Helper()
	f.update(t, map[string]any{
		"chat_id": chatID,
		"caption": caption,
		"photo": []map[string]any{
			{"file_id": "small", "file_unique_id": "s", "width": 90, "height": 90},
			{"file_id": "big", "file_unique_id": "b", "width": 1280, "height": 1280},
		},
	})
	return f.tg.drain()
}

func (f *fixture) do(t *testing.T, method, path, token string, body *bytes.Reader) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) issue(t *testing.T, chatID int64) string {
	t.Helper()
	it, err := f.permits.StartApplication(context.Background(), chatID, map[string]string{"marca": "NISSAN"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return it.Ticket.ID
}

func texts(msgs []sentMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.text)
		b.WriteString("\n---\n")
	}
	return b.String()
}
