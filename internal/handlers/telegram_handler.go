package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"permitbot/internal/services"
)

const updateTimeout = 2 * time.Minute

type TelegramHandler struct {
	Conv    *services.Conversation
	Permits *services.PermitService
	Admin   *services.AdminOverride
	TG      services.Messenger
	// Sync processes updates before answering the webhook. Tests set it;
	// in production Telegram gets its 200 immediately.
	Sync bool

	inflight sync.WaitGroup
}

func NewTelegramHandler(conv *services.Conversation, permits *services.PermitService, admin *services.AdminOverride, tg services.Messenger) *TelegramHandler {
	return &TelegramHandler{Conv: conv, Permits: permits, Admin: admin, TG: tg}
}

// @Summary      Telegram webhook
// @Description  Receives Telegram updates. Always answers 200 so Telegram does not retry.
// @Tags         Telegram
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /telegram/webhook [post]
func (h *TelegramHandler) Webhook(c *gin.Context) {
	var up tgbotapi.Update
	if err := c.ShouldBindJSON(&up); err != nil {
		log.Printf("[tg][webhook] bind json error: %v", err)
		c.JSON(http.StatusOK, gin.H{"ok": true, "note": "bad_json"})
		return
	}
	if up.Message == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	log.Printf("[tg][webhook] update=%d chat=%d text=%q", up.UpdateID, up.Message.Chat.ID, up.Message.Text)

	if h.Sync {
		h.HandleMessage(c.Request.Context(), up.Message)
	} else {
		msg := up.Message
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[tg][webhook][panic] update=%d: %v", up.UpdateID, r)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
			defer cancel()
			h.HandleMessage(ctx, msg)
		}()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Wait blocks until every update accepted by Webhook has been processed.
func (h *TelegramHandler) Wait() {
	h.inflight.Wait()
}

// HandleMessage routes one inbound message: override command, bot command,
// payment proof, form answer, fallback.
func (h *TelegramHandler) HandleMessage(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	text := strings.TrimSpace(m.Text)

	if h.Admin != nil && text != "" && h.Admin.IsCommand(text) {
		op := services.Operator{Source: services.SourceTelegram, ChatID: chatID}
		res := h.Admin.AdminCommand(ctx, op, text)
		h.reply(chatID, h.Admin.Reply(res))
		return
	}

	switch commandOf(text) {
	case "start":
		h.reply(chatID, services.MsgWelcome)
		return
	case "cancel", "stop":
		h.Conv.Cancel(chatID)
		h.reply(chatID, services.MsgCancelled)
		return
	case "permiso":
		prompt, err := h.Conv.Begin(chatID)
		if err != nil {
			log.Printf("[tg][permiso] chat=%d busy", chatID)
		}
		h.reply(chatID, prompt)
		return
	case "folios":
		h.listPending(chatID)
		return
	}

	if ref := proofRef(m); ref != "" {
		h.handleProof(ctx, chatID, ref, m.Caption)
		return
	}

	if text != "" {
		if r, ok := h.Conv.Answer(ctx, chatID, text); ok {
			h.deliver(chatID, r)
			return
		}
	}
	h.reply(chatID, services.MsgFallback)
}

func (h *TelegramHandler) handleProof(ctx context.Context, chatID int64, ref, caption string) {
	var (
		res *services.ProofResult
		err error
	)
	if id := h.folioIn(chatID, caption); id != "" {
		res, err = h.Permits.SubmitProofForTicket(ctx, chatID, id, ref)
	} else {
		res, err = h.Permits.SubmitProof(ctx, chatID, ref)
	}
	switch {
	case errors.Is(err, services.ErrUnknownTicket):
		h.reply(chatID, services.MsgProofNoTicket)
	case err != nil:
		log.Printf("[tg][proof][err] chat=%d: %v", chatID, err)
		h.reply(chatID, services.MsgProofNoTicket)
	case res.Status == services.ProofAmbiguous:
		h.reply(chatID, services.AmbiguousText(res.Candidates))
	}
	// confirmed: the lifecycle already notified the requester
}

// folioIn returns the folio named in caption: a pending folio of chatID if
// one is mentioned, otherwise the first token shaped like a folio. A stale
// folio therefore reaches SubmitProofForTicket and is rejected there.
func (h *TelegramHandler) folioIn(chatID int64, caption string) string {
	if caption == "" {
		return ""
	}
	words := strings.FieldsFunc(caption, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	})
	for _, t := range h.Permits.Pending(chatID) {
		for _, w := range words {
			if w == t.ID {
				return t.ID
			}
		}
	}
	for _, w := range words {
		if h.Permits.IsFolio(w) {
			return w
		}
	}
	return ""
}

func (h *TelegramHandler) listPending(chatID int64) {
	pending := h.Permits.Pending(chatID)
	if len(pending) == 0 {
		h.reply(chatID, services.MsgNoPending)
		return
	}
	ids := make([]string, 0, len(pending))
	for _, t := range pending {
		ids = append(ids, t.ID+" (vence "+t.DeadlineAt.Format("15:04")+")")
	}
	h.reply(chatID, services.PendingListText(ids))
}

func (h *TelegramHandler) deliver(chatID int64, r *services.Reply) {
	if r.Issued == nil {
		h.reply(chatID, r.Text)
		return
	}
	caption := r.Issued.Caption(h.Permits.Window())
	sent := false
	if r.Issued.Document != nil {
		if err := h.TG.SendDocument(chatID, r.Issued.Document.Path, caption); err == nil {
			sent = true
		} else {
			log.Printf("[tg][document] fallback to text chat=%d: %v", chatID, err)
		}
	}
	if !sent {
		h.reply(chatID, caption)
	}
	h.reply(chatID, services.MsgDone)
}

func (h *TelegramHandler) reply(chatID int64, text string) {
	if err := h.TG.SendMessage(chatID, text); err != nil {
		log.Printf("[tg][reply][err] chat=%d: %v", chatID, err)
	}
}

// commandOf returns "permiso" for "/permiso@Bot args"; "" for plain text.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// proofRef is the Telegram file id of an attached photo (largest size) or document.
func proofRef(m *tgbotapi.Message) string {
	if n := len(m.Photo); n > 0 {
		return m.Photo[n-1].FileID
	}
	if m.Document != nil {
		return m.Document.FileID
	}
	return ""
}
