// Package httpapi serves the web chat, its SSE stream and the WhatsApp
// Cloud API webhook over gin.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/recordpilot/internal/logging"
)

// RouterConfig lists the handlers to mount. Nil handlers are skipped.
type RouterConfig struct {
	Health   *HealthHandler
	Chat     *ChatHandler
	WhatsApp *WhatsAppHandler
	Log      *logging.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Log))

	if cfg.Health != nil {
		r.GET("/health", cfg.Health.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.Chat != nil {
			api.POST("/chat", cfg.Chat.Chat)
			api.POST("/chat/stream", cfg.Chat.ChatStream)
			api.POST("/chat/reset", cfg.Chat.Reset)
		}
		if cfg.WhatsApp != nil {
			api.POST("/whatsapp/send", cfg.WhatsApp.Send)
		}
	}

	if cfg.WhatsApp != nil {
		r.GET("/webhook", cfg.WhatsApp.Verify)
		r.POST("/webhook", cfg.WhatsApp.Receive)
	}
	return r
}
