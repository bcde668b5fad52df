package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mundir-Doom/loop-support/api"
	"github.com/Mundir-Doom/loop-support/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handlers struct {
	Session *handler.SessionHandler
	Ticket  *handler.TicketHandler
	Webhook *handler.WebhookHandler
	Setup   *handler.SetupHandler
}

// New собирает HTTP-поверхность: health-пробы, swagger UI, JSON API, вебхук
// Telegram и, если есть каталог сборки, SPA-фоллбэк.
func New(h Handlers, staticDir string) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", handler.Health)
	r.GET("/ready", handler.Ready)

	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/") })
	r.GET("/swagger/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = "/swagger/index.html"
			c.Request.RequestURI = "/swagger/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("", handler.APIRoot)
		apiGroup.GET("/health", handler.Health)

		apiGroup.POST("/session", h.Session.Create)
		apiGroup.GET("/session/:id", h.Session.Conversation)
		apiGroup.POST("/session/:id/messages", h.Session.PostMessage)
		apiGroup.POST("/session/:id/new-ticket", h.Session.NewTicket)

		apiGroup.POST("/tickets/:id/close", h.Ticket.Close)
		apiGroup.POST("/tickets/:id/reopen", h.Ticket.Reopen)

		apiGroup.POST("/telegram/webhook", h.Webhook.Telegram)
		apiGroup.POST("/setup/telegram-webhook", h.Setup.SetWebhook)
		apiGroup.GET("/setup/info", h.Setup.Info)
	}

	if staticDir != "" {
		if _, err := os.Stat(staticDir); err == nil {
			registerSPA(r, staticDir)
		}
	}

	return r
}

// registerSPA раздаёт сборку виджета для не-API маршрутов с фоллбэком на
// index.html, чтобы работал клиентский роутинг.
func registerSPA(r *gin.Engine, dir string) {
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		candidate := filepath.Join(dir, filepath.Clean("/"+path))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
}
