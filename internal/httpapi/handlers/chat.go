package handlers

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatgate/internal/audit"
	"chatgate/internal/common"
	"chatgate/internal/imagecheck"
	"chatgate/internal/llm"
	"chatgate/internal/strategy"
)

const (
	promptMaxChars  = 10000
	imageURLMaxLen  = 2000
	imageBodyMaxLen = 14_000_000
)

type chatReq struct {
	ChatID      string `json:"chat_id"`
	Mode        string `json:"mode"`
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"image_url"`
	ImageBase64 string `json:"image_base64"`
}

func (r *chatReq) validate() (int, string) {
	n := utf8.RuneCountInString(r.Prompt)
	if n < 1 || n > promptMaxChars {
		return 10011, "prompt must be 1-10000 characters"
	}
	if len(r.ImageURL) > imageURLMaxLen {
		return 10012, "image_url too long"
	}
	if len(r.ImageBase64) > imageBodyMaxLen {
		return 10013, "image_base64 too large"
	}
	return 0, ""
}

// SendChat runs the full pipeline for one turn: dispatch, quota check,
// chat resolution, then streaming the strategy output to the caller. The
// response status is committed with the first chunk, so errors raised
// before any output map to the error taxonomy while later ones can only
// cut the body short.
func (h *Handler) SendChat(c *gin.Context) {
	sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if code, msg := req.validate(); code != 0 {
		common.Fail(c, http.StatusBadRequest, code, msg)
		return
	}

	strat := h.Dispatcher.Choose(req.Mode)

	// Image analysis needs exactly one image input; the client enforces
	// this again right before the provider call.
	if _, isAnalysis := strat.(*strategy.ImageAnalysisStrategy); isAnalysis {
		if (req.ImageURL == "") == (req.ImageBase64 == "") {
			common.Fail(c, http.StatusBadRequest, 10015, "image_analysis requires exactly one of image_url or image_base64")
			return
		}
	}

	ctx := c.Request.Context()

	allowed, err := strat.RunValidation(ctx, sess.ID, sess.ReferenceKind)
	if err != nil {
		h.Log.Error("quota check failed", zap.Error(err), zap.String("session_id", sess.ID))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if !allowed {
		common.Fail(c, http.StatusForbidden, 40301, "usage limit reached for this mode")
		return
	}

	ch, err := h.Chats.GetOrCreateChat(ctx, sess.ID, req.ChatID, req.Prompt)
	if err != nil {
		h.Log.Error("chat resolution failed", zap.Error(err), zap.String("session_id", sess.ID))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	contentType := strat.ResponseContentType()
	c.Header("X-Chat-Id", ch.ID)
	c.Header("X-Content-Type", contentType)
	c.Header("Content-Type", contentType)

	chunks, errs := strat.GenerateResponse(ctx, strategy.Input{
		Prompt:       req.Prompt,
		Chat:         ch,
		SessionID:    sess.ID,
		ImageURL:     req.ImageURL,
		ImagePayload: req.ImageBase64,
	})

	wrote := false
	for chunk := range chunks {
		if !wrote {
			c.Status(http.StatusOK)
			wrote = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			// client went away; the strategy sees ctx cancellation
			break
		}
		c.Writer.Flush()
	}

	// Strategies buffer at most one error before closing both channels.
	if err := <-errs; err != nil {
		if wrote {
			h.Log.Warn("stream aborted after partial output",
				zap.Error(err), zap.String("chat_id", ch.ID))
			return
		}
		h.failStream(c, sess.ID, err)
	}
}

// failStream maps a pre-output pipeline failure to the error taxonomy.
func (h *Handler) failStream(c *gin.Context, sessionID string, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, imagecheck.ErrUnsafeURL),
		errors.Is(err, imagecheck.ErrUnknownFormat),
		errors.Is(err, llm.ErrBadPayload):
		h.Audit.SecurityEvent(ctx, audit.Event{
			Reason:    err.Error(),
			SessionID: sessionID,
			ClientIP:  c.ClientIP(),
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
		})
		common.Fail(c, http.StatusBadRequest, 42201, "image input rejected")
	case errors.Is(err, llm.ErrImageInput):
		common.Fail(c, http.StatusBadRequest, 10015, "image_analysis requires exactly one of image_url or image_base64")
	case errors.Is(err, strategy.ErrStore):
		h.Log.Error("store failure during generation", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50002, "internal error")
	case errors.Is(err, context.Canceled):
		// caller already gone
	default:
		h.Log.Error("provider failure", zap.Error(err))
		common.Fail(c, http.StatusBadGateway, 50201, "upstream provider error")
	}
}
