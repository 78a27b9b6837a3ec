package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"chatgate/internal/audit"
	"chatgate/internal/auth"
	"chatgate/internal/common"
	"chatgate/internal/session"
)

const sessionHeader = "X-Session-Id"

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userType(kind session.ReferenceKind) string {
	if kind == session.SignedInUser {
		return "authenticated"
	}
	return "anonymous"
}

// CreateSession bootstraps (or reuses) a session. Identity precedence:
// bearer token, X-User-Id development fallback, anonymous fingerprint.
// An invalid or expired token falls through to the next source rather
// than failing the call.
func (h *Handler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		sess *session.Session
		err  error
	)
	if tok, ok := auth.ExtractBearerToken(c.GetHeader("Authorization")); ok {
		if userID, terr := auth.UserIDFromToken(tok, h.Cfg.JWTSecret); terr == nil {
			sess, err = h.Sessions.EnsureSignedIn(ctx, userID)
		}
	}
	if sess == nil && err == nil {
		if uid := strings.TrimSpace(c.GetHeader("X-User-Id")); uid != "" {
			sess, err = h.Sessions.EnsureSignedIn(ctx, uid)
		}
	}
	if sess == nil && err == nil {
		sess, err = h.Sessions.EnsureAnonymous(ctx,
			c.Request.UserAgent(), c.GetHeader("Accept-Language"), c.ClientIP())
	}
	if err != nil {
		h.Log.Error("session bootstrap failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.OK(c, gin.H{
		"session_id":     sess.ID,
		"user_type":      userType(sess.ReferenceKind),
		"reference_type": sess.ReferenceKind,
	})
}

// DeleteSession deactivates the caller's session. Deactivating an
// already-inactive session succeeds again; only an unknown id fails.
func (h *Handler) DeleteSession(c *gin.Context) {
	sid := c.GetHeader(sessionHeader)
	if sid == "" {
		common.Fail(c, http.StatusBadRequest, 10010, "session header required")
		return
	}

	if err := h.Sessions.Deactivate(c.Request.Context(), sid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.Audit.AuthFailure(c.Request.Context(), audit.Event{
				Reason:    "teardown of unknown session",
				SessionID: sid,
				ClientIP:  c.ClientIP(),
				Path:      c.Request.URL.Path,
				Method:    c.Request.Method,
			})
			common.Fail(c, http.StatusUnauthorized, 40102, "unknown session")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"message": "Session invalidated successfully."})
}

// requireSession resolves the session header to an active session or
// writes the matching failure envelope.
func (h *Handler) requireSession(c *gin.Context) (*session.Session, bool) {
	sid := c.GetHeader(sessionHeader)
	if sid == "" {
		common.Fail(c, http.StatusBadRequest, 10010, "session header required")
		return nil, false
	}
	sess, err := h.Sessions.GetActive(c.Request.Context(), sid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.Audit.AuthFailure(c.Request.Context(), audit.Event{
				Reason:    "unknown or inactive session",
				SessionID: sid,
				ClientIP:  c.ClientIP(),
				Path:      c.Request.URL.Path,
				Method:    c.Request.Method,
			})
			common.Fail(c, http.StatusUnauthorized, 40102, "unknown or inactive session")
			return nil, false
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return nil, false
	}
	return sess, true
}
