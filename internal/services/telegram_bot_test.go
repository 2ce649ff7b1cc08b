package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.sendErr
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetWebhookInfo() (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{URL: "https://bot.example.org/telegram/webhook", PendingUpdateCount: 2}, nil
}

func (b *fakeBot) GetMe() (tgbotapi.User, error) {
	return tgbotapi.User{ID: 77, UserName: "PermisoBot"}, nil
}

func TestTelegramServiceSend(t *testing.T) {
	bot := &fakeBot{}
	tg := NewTelegramServiceWithBot(bot)

	if err := tg.Notify(context.Background(), 42, "<b>hola</b>"); err != nil {
		t.Fatal(err)
	}
	if err := tg.SendDocument(42, "/tmp/x.pdf", "cap"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("sent = %d", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeHTML || msg.Text != "<b>hola</b>" {
		t.Fatalf("message = %#v", bot.sent[0])
	}
	doc, ok := bot.sent[1].(tgbotapi.DocumentConfig)
	if !ok || doc.ChatID != 42 || doc.Caption != "cap" || doc.File != tgbotapi.FilePath("/tmp/x.pdf") {
		t.Fatalf("document = %#v", bot.sent[1])
	}
}

func TestTelegramServiceSendError(t *testing.T) {
	tg := NewTelegramServiceWithBot(&fakeBot{sendErr: errors.New("blocked")})
	if err := tg.SendMessage(1, "x"); err == nil {
		t.Fatal("expected error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.Notify(ctx, 1, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestTelegramServiceDisabled(t *testing.T) {
	tg, err := NewTelegramService("")
	if err != nil || tg.Enabled() {
		t.Fatalf("NewTelegramService(\"\") = %v, %v", tg, err)
	}
	if err := tg.SendMessage(1, "x"); err != nil {
		t.Fatal(err)
	}
	if err := tg.SetWebhook("https://x"); err != nil {
		t.Fatal(err)
	}
	if st, _ := tg.Status(true); st.Enabled {
		t.Fatal("disabled bot reported enabled")
	}
}

func TestTelegramServiceWebhook(t *testing.T) {
	bot := &fakeBot{}
	tg := NewTelegramServiceWithBot(bot)
	if err := tg.SetWebhook("https://bot.example.org/telegram/webhook"); err != nil {
		t.Fatal(err)
	}
	if len(bot.requests) != 2 {
		t.Fatalf("requests = %d", len(bot.requests))
	}
	wh, ok := bot.requests[1].(tgbotapi.WebhookConfig)
	if !ok || wh.URL.String() != "https://bot.example.org/telegram/webhook" || !wh.DropPendingUpdates {
		t.Fatalf("webhook = %#v", bot.requests[1])
	}

	st, err := tg.Status(true)
	if err != nil || st.BotID != 77 || st.Pending != 2 || st.Username != "PermisoBot" {
		t.Fatalf("status = %+v, %v", st, err)
	}
}
