package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatgate/internal/common"
	"chatgate/internal/config"
	"chatgate/internal/httpapi/handlers"
	"chatgate/internal/httpapi/middleware"
	"chatgate/internal/store/redisstore"
)

// NewRouter wires middleware and routes around an already-constructed
// handler. rds may be nil, which disables the chat rate limiter.
func NewRouter(cfg config.Config, log *zap.Logger, h *handlers.Handler, rds *redisstore.Store) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))

	corsCfg := cors.DefaultConfig()
	if cfg.CORSOrigins == "" || cfg.CORSOrigins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSOrigins, ",")
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders,
		"Authorization", "X-Session-Id", "X-User-Id", "X-Request-Id")
	corsCfg.ExposeHeaders = []string{"X-Chat-Id", "X-Content-Type", "X-Request-Id"}
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api/v1")
	api.POST("/session", h.CreateSession)
	api.DELETE("/session", h.DeleteSession)

	chatLimiter := middleware.RateLimit(rds, cfg.RateLimitChat,
		time.Duration(cfg.RateLimitWindowSecs)*time.Second, log)
	api.POST("/chat", chatLimiter, h.SendChat)

	api.GET("/chat-history", h.ListChats)
	api.GET("/chat-history/:chat_id", h.ListChatMessages)

	return r
}
