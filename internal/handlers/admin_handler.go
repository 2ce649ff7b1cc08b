package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"permitbot/internal/config"
	"permitbot/internal/middleware"
	"permitbot/internal/models"
	"permitbot/internal/services"
)

type AdminHandler struct {
	Admin    *services.AdminOverride
	Permits  *services.PermitService
	Docs     *services.DocumentService
	users    map[string]config.AdminUser
	jwtKey   []byte
	tokenTTL time.Duration
}

func NewAdminHandler(admin *services.AdminOverride, permits *services.PermitService, docs *services.DocumentService, cfg config.AdminConfig) *AdminHandler {
	users := make(map[string]config.AdminUser, len(cfg.Users))
	for _, u := range cfg.Users {
		users[strings.ToLower(u.Username)] = u
	}
	return &AdminHandler{
		Admin:    admin,
		Permits:  permits,
		Docs:     docs,
		users:    users,
		jwtKey:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// @Summary      Operator login
// @Description  Checks the bcrypt password of a configured operator and returns a signed token
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        login  body      LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	u, ok := h.users[username]
	if !ok || u.PasswordHash == "" {
		log.Printf("[admin][login] unknown operator %q", username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		log.Printf("[admin][login] bcrypt mismatch for %q", username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	token, err := middleware.IssueToken(h.jwtKey, u.Username, u.RoleID, h.tokenTTL)
	if err != nil {
		log.Printf("[admin][login] sign token failed for %q: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	log.Printf("[admin][login] success operator=%q role=%d", u.Username, u.RoleID)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.tokenTTL / time.Second),
		"role_id":    u.RoleID,
	})
}

// @Summary      Pending folios
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Ticket
// @Router       /admin/tickets [get]
func (h *AdminHandler) ListPending(c *gin.Context) {
	list := h.Permits.Pending(0)
	if list == nil {
		list = []*models.Ticket{}
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Folio by id
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Folio"
// @Success      200  {object}  models.Ticket
// @Failure      404  {object}  map[string]string
// @Router       /admin/tickets/{id} [get]
func (h *AdminHandler) GetTicket(c *gin.Context) {
	t, err := h.Permits.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Download permit PDF
// @Tags         Admin
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  string  true  "Folio"
// @Success      200  {file}  file
// @Failure      404  {object}  map[string]string
// @Router       /admin/tickets/{id}/document [get]
func (h *AdminHandler) DownloadDocument(c *gin.Context) {
	t, err := h.Permits.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil || t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	abs, name, err := h.Docs.ResolveFileForHTTP(t)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(abs, name)
}

// @Summary      Force-confirm a folio
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Folio"
// @Success      200  {object}  services.AdminOutcome
// @Failure      400  {object}  services.AdminOutcome
// @Failure      403  {object}  services.AdminOutcome
// @Failure      404  {object}  services.AdminOutcome
// @Router       /admin/tickets/{id}/confirm [post]
func (h *AdminHandler) Confirm(c *gin.Context) {
	res := h.Admin.AdminConfirm(c.Request.Context(), operatorFromCtx(c), c.Param("id"))
	c.JSON(outcomeStatus(res.Result), res)
}

// @Summary      Run an override command
// @Description  Same text command operators send in Telegram, e.g. "/validar 05000001"
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        command  body      CommandRequest  true  "Command"
// @Success      200      {object}  services.AdminOutcome
// @Router       /admin/command [post]
func (h *AdminHandler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, services.AdminOutcome{Result: services.AdminMalformed})
		return
	}
	res := h.Admin.AdminCommand(c.Request.Context(), operatorFromCtx(c), req.Command)
	c.JSON(outcomeStatus(res.Result), res)
}

func outcomeStatus(r services.AdminResult) int {
	switch r {
	case services.AdminConfirmed, services.AdminAlreadyResolved:
		return http.StatusOK
	case services.AdminNotFound:
		return http.StatusNotFound
	case services.AdminMalformed:
		return http.StatusBadRequest
	}
	return http.StatusForbidden
}
