package routes

import (
	"github.com/gin-gonic/gin"

	"permitbot/internal/authz"
	"permitbot/internal/handlers"
	"permitbot/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	jwtKey []byte,
	filesRoot string,
	healthHandler *handlers.HealthHandler,
	telegramHandler *handlers.TelegramHandler,
	adminHandler *handlers.AdminHandler,
) *gin.Engine {

	// ---- public
	r.GET("/", healthHandler.Health)
	r.GET("/debug", healthHandler.Debug)
	r.POST("/telegram/webhook", telegramHandler.Webhook)
	r.Static("/files", filesRoot)

	// ---- operators (JWT)
	admin := r.Group("/admin", middleware.AuthMiddleware(jwtKey), middleware.ReadOnlyGuard())
	{
		admin.POST("/login", adminHandler.Login)
		admin.GET("/tickets", adminHandler.ListPending)
		admin.GET("/tickets/:id", adminHandler.GetTicket)
		admin.GET("/tickets/:id/document", adminHandler.DownloadDocument)

		overrides := admin.Group("", middleware.RequireRoles(authz.RoleOperator, authz.RoleAdmin))
		overrides.POST("/tickets/:id/confirm", adminHandler.Confirm)
		overrides.POST("/command", adminHandler.Command)
	}

	return r
}
