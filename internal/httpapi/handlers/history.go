package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chatgate/internal/audit"
	"chatgate/internal/common"
)

// ListChats returns the caller's unarchived chats, newest first.
func (h *Handler) ListChats(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	chats, err := h.Chats.ListChats(c.Request.Context(), sess.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	out := make([]gin.H, 0, len(chats))
	for _, ch := range chats {
		out = append(out, gin.H{"chat_id": ch.ID, "title": ch.Title})
	}
	common.OK(c, gin.H{"chats": out})
}

func pageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

// ListChatMessages returns one page of a chat's history, newest first.
// A chat owned by another session is reported as missing, never as
// forbidden, so chat ids cannot be probed for existence; the attempt is
// audited.
func (h *Handler) ListChatMessages(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	chatID := c.Param("chat_id")
	ctx := c.Request.Context()

	ch, err := h.Chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if ch.SessionID != sess.ID {
		h.Audit.SuspiciousAccess(ctx, audit.Event{
			Reason:    "session requested a foreign chat",
			SessionID: sess.ID,
			ClientIP:  c.ClientIP(),
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
			Details:   map[string]any{"chat_id": chatID, "owner_session_id": ch.SessionID},
		})
		common.Fail(c, http.StatusNotFound, 40402, "chat not found")
		return
	}

	page, pageSize := pageParams(c)
	msgs, err := h.Chats.ListMessagesPage(ctx, chatID, page, pageSize)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"chat_id":   chatID,
		"page":      page,
		"page_size": pageSize,
		"messages":  msgs,
	})
}
