package services

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of *tgbotapi.BotAPI the service uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	GetMe() (tgbotapi.User, error)
}

// Messenger sends chat messages and permit documents.
type Messenger interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, path, caption string) error
}

// TelegramService is the outbound transport. A service without a bot (no
// token configured) logs and drops every message.
type TelegramService struct {
	bot BotAPI
}

func NewTelegramService(botToken string) (*TelegramService, error) {
	if botToken == "" {
		log.Printf("[tg][init] no bot token; outbound messages disabled")
		return &TelegramService{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	log.Printf("[tg][init] authorized as @%s", bot.Self.UserName)
	return &TelegramService{bot: bot}, nil
}

func NewTelegramServiceWithBot(bot BotAPI) *TelegramService {
	return &TelegramService{bot: bot}
}

func (t *TelegramService) Enabled() bool { return t != nil && t.bot != nil }

func (t *TelegramService) SendMessage(chatID int64, text string) error {
	if !t.Enabled() || chatID == 0 {
		log.Printf("[tg][skip] bot disabled or chatID empty (chatID=%d)", chatID)
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][send][err] chatID=%d: %v", chatID, err)
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	log.Printf("[tg][send] chatID=%d len=%d", chatID, len(text))
	return nil
}

func (t *TelegramService) SendDocument(chatID int64, path, caption string) error {
	if !t.Enabled() || chatID == 0 {
		log.Printf("[tg][skip] bot disabled or chatID empty (chatID=%d)", chatID)
		return nil
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(doc); err != nil {
		log.Printf("[tg][document][err] chatID=%d path=%s: %v", chatID, path, err)
		return fmt.Errorf("telegram sendDocument failed: %w", err)
	}
	log.Printf("[tg][document] chatID=%d path=%s", chatID, path)
	return nil
}

// Notify implements Notifier. Requester ids are Telegram chat ids.
func (t *TelegramService) Notify(ctx context.Context, requesterID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.SendMessage(requesterID, text)
}

// SetWebhook drops queued updates and points Telegram at url.
func (t *TelegramService) SetWebhook(url string) error {
	if !t.Enabled() || url == "" {
		return nil
	}
	if _, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		log.Printf("[tg][deleteWebhook][err] %v", err)
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram webhook url: %w", err)
	}
	wh.DropPendingUpdates = true
	wh.AllowedUpdates = []string{"message"}
	if _, err := t.bot.Request(wh); err != nil {
		return fmt.Errorf("telegram setWebhook failed: %w", err)
	}
	if info, err := t.bot.GetWebhookInfo(); err == nil {
		log.Printf("[tg][setWebhook] url=%s pending=%d", info.URL, info.PendingUpdateCount)
	}
	return nil
}

func (t *TelegramService) DeleteWebhook() error {
	if !t.Enabled() {
		return nil
	}
	_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

// BotStatus is the transport state reported by the health endpoints.
type BotStatus struct {
	Enabled  bool   `json:"enabled"`
	BotID    int64  `json:"bot_id,omitempty"`
	Username string `json:"username,omitempty"`
	Webhook  string `json:"webhook"`
	Pending  int    `json:"pending"`
}

func (t *TelegramService) Status(withMe bool) (BotStatus, error) {
	if !t.Enabled() {
		return BotStatus{}, nil
	}
	st := BotStatus{Enabled: true}
	info, err := t.bot.GetWebhookInfo()
	if err != nil {
		return st, fmt.Errorf("telegram getWebhookInfo: %w", err)
	}
	st.Webhook, st.Pending = info.URL, info.PendingUpdateCount
	if withMe {
		me, err := t.bot.GetMe()
		if err != nil {
			return st, fmt.Errorf("telegram getMe: %w", err)
		}
		st.BotID, st.Username = me.ID, me.UserName
	}
	return st, nil
}
