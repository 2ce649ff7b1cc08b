package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "permitbot/docs"
	"permitbot/internal/clock"
	"permitbot/internal/config"
	"permitbot/internal/handlers"
	"permitbot/internal/pdf"
	"permitbot/internal/repositories"
	"permitbot/internal/routes"
	"permitbot/internal/services"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired components of one bot process.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Repo    repositories.TicketRepository
	TG      *services.TelegramService
	Lock    *services.SubmissionLock
	Life    *services.Lifecycle
	Alloc   *services.TicketAllocator
	Permits *services.PermitService
	Conv    *services.Conversation
	Admin   *services.AdminOverride
	Router  *gin.Engine

	Telegram *handlers.TelegramHandler
}

// New wires every component. With no database URL the in-memory store is
// used and nothing survives a restart.
func New(cfg *config.Config, tg *services.TelegramService, clk clock.Clock) (*App, error) {
	a := &App{Config: cfg, TG: tg}
	if clk == nil {
		clk = clock.Real()
	}

	// === Store ===
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := repositories.EnsureSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		a.Repo = repositories.NewTicketRepository(db)
	} else {
		log.Printf("[app][store] no database url; using in-memory store")
		a.Repo = repositories.NewMemoryTicketRepository()
	}

	// === Services ===
	p := cfg.Permit
	a.Lock = services.NewSubmissionLock(p.FlowTTL, clk)
	a.Life = services.NewLifecycle(a.Repo, tg, clk, services.NewReminderPlan(p.Deadline, p.Reminders))
	a.Alloc = services.NewTicketAllocator(a.Repo, services.AllocatorOptions{
		Stride:     p.IDStride,
		MaxRetries: p.MaxAllocRetries,
		Width:      p.IDWidth,
	})

	pdfGen := pdf.NewDocumentGenerator(cfg.Files.RootDir, cfg.Files.FontPath, p.Entity)
	docs := services.NewDocumentService(cfg.Files.RootDir, cfg.Server.BaseURL, p.ValidityDays, p.Entity, pdfGen)

	a.Permits = services.NewPermitService(a.Repo, a.Alloc, a.Life, docs, clk, services.PermitOptions{
		Prefix:         p.Prefix,
		InsertAttempts: p.InsertAttempts,
		InsertDelay:    p.InsertDelay,
	})
	a.Conv = services.NewConversation(a.Lock, a.Permits)

	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
		cfg.Email.AuditTo,
	)
	a.Admin = services.NewAdminOverride(a.Life, cfg.Admin.CommandPrefix, cfg.Admin.ChatIDs, emailService)

	// === Handlers ===
	healthHandler := handlers.NewHealthHandler(tg, a.Lock, a.Life, a.Conv)
	a.Telegram = handlers.NewTelegramHandler(a.Conv, a.Permits, a.Admin, tg)
	adminHandler := handlers.NewAdminHandler(a.Admin, a.Permits, docs, cfg.Admin)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, []byte(cfg.Admin.JWTSecret), cfg.Files.RootDir, healthHandler, a.Telegram, adminHandler)
	a.Router = router
	return a, nil
}

// Start seeds the allocator, resumes pending folios and starts the lock
// sweeper. The sweeper stops with ctx.
func (a *App) Start(ctx context.Context) error {
	if err := a.Alloc.Seed(ctx, a.Config.Permit.Prefix); err != nil {
		return err
	}
	if _, err := a.Permits.Resume(ctx); err != nil {
		return err
	}
	go a.Lock.RunSweeper(ctx, a.Config.Permit.LockSweep)

	if a.Config.Telegram.SetWebhook && a.Config.Server.BaseURL != "" {
		url := strings.TrimRight(a.Config.Server.BaseURL, "/") + "/telegram/webhook"
		if err := a.TG.SetWebhook(url); err != nil {
			log.Printf("[app][webhook][err] %v", err)
		}
	} else {
		log.Printf("[app][webhook] base_url not set or set_webhook off; webhook not registered")
	}
	return nil
}

// Close waits for in-flight updates, stops timers and releases the
// database. Pending folios stay in the store and are resumed on the next start.
func (a *App) Close() {
	if a.Telegram != nil {
		a.Telegram.Wait()
	}
	a.Life.Shutdown()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("[app][db] close: %v", err)
		}
	}
}

// Run serves until SIGINT/SIGTERM.
func Run(cfg *config.Config) error {
	tg, err := services.NewTelegramService(cfg.Telegram.BotToken)
	if err != nil {
		return err
	}
	a, err := New(cfg, tg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("[app] listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Printf("[app] shutting down")
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("[app] shutdown: %v", err)
	}
	if a.Config.Telegram.SetWebhook {
		if err := a.TG.DeleteWebhook(); err != nil {
			log.Printf("[app][webhook] delete: %v", err)
		}
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
