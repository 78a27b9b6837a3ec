package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatgate/internal/common"
	"chatgate/internal/store/redisstore"
)

// RateLimit applies a fixed-window cap per session (falling back to the
// client IP when no session header is present). A nil store disables the
// limiter; a Redis failure lets the request through rather than taking
// the API down with it.
func RateLimit(store *redisstore.Store, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || limit <= 0 {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if sid := c.GetHeader("X-Session-Id"); sid != "" {
			key = "session:" + sid
		}

		allowed, err := store.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			common.Fail(c, http.StatusTooManyRequests, 42900, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
