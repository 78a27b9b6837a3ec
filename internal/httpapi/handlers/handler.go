package handlers

import (
	"go.uber.org/zap"

	"chatgate/internal/audit"
	"chatgate/internal/chat"
	"chatgate/internal/config"
	"chatgate/internal/session"
	"chatgate/internal/strategy"
)

// Handler carries the wired collaborators for every route. Construction
// happens once in main; nothing here is mutated per request.
type Handler struct {
	Cfg        config.Config
	Log        *zap.Logger
	Sessions   *session.Service
	Chats      *chat.Repo
	Dispatcher *strategy.Dispatcher
	Audit      *audit.Auditor
}

func NewHandler(cfg config.Config, log *zap.Logger, sessions *session.Service, chats *chat.Repo, d *strategy.Dispatcher, auditor *audit.Auditor) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if auditor == nil {
		auditor = audit.NewAuditor(log, nil)
	}
	return &Handler{
		Cfg:        cfg,
		Log:        log,
		Sessions:   sessions,
		Chats:      chats,
		Dispatcher: d,
		Audit:      auditor,
	}
}
