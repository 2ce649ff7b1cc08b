package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"permitbot/internal/services"
)

type HealthHandler struct {
	TG   *services.TelegramService
	Lock *services.SubmissionLock
	Life *services.Lifecycle
	Conv *services.Conversation
}

func NewHealthHandler(tg *services.TelegramService, lock *services.SubmissionLock, life *services.Lifecycle, conv *services.Conversation) *HealthHandler {
	return &HealthHandler{TG: tg, Lock: lock, Life: life, Conv: conv}
}

// @Summary      Health
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (h *HealthHandler) Health(c *gin.Context) {
	st, err := h.TG.Status(false)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "webhook": st.Webhook, "pending": st.Pending})
}

// @Summary      Debug counters
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /debug [get]
func (h *HealthHandler) Debug(c *gin.Context) {
	st, err := h.TG.Status(true)
	resp := gin.H{
		"bot":           gin.H{"enabled": st.Enabled, "id": st.BotID, "username": st.Username},
		"webhook":       st.Webhook,
		"pending":       st.Pending,
		"active_locks":  h.Lock.Len(),
		"active_timers": h.Life.ActiveTimers(),
		"active_drafts": h.Conv.Len(),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
