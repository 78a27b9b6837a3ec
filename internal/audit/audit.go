// Package audit records security-relevant request outcomes. Events are
// always logged; when a queue publisher is configured they are also
// shipped for durable storage by the worker.
package audit

import (
	"context"

	"go.uber.org/zap"
)

// Event kinds.
const (
	KindSuspiciousAccess   = "suspicious_access"
	KindSecurityValidation = "security_validation"
	KindAuthFailure        = "auth_failure"
)

// Event is one audit entry as emitted by the API process.
type Event struct {
	Kind      string         `json:"kind"`
	Reason    string         `json:"reason"`
	SessionID string         `json:"session_id,omitempty"`
	ClientIP  string         `json:"client_ip,omitempty"`
	Path      string         `json:"path,omitempty"`
	Method    string         `json:"method,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Publisher ships events to the audit queue. Implementations must not
// block indefinitely; a publish failure never fails the request.
type Publisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}

// Auditor is the emission point used by handlers and middleware.
type Auditor struct {
	log *zap.Logger
	pub Publisher
}

// NewAuditor builds an auditor. pub may be nil, in which case events are
// only logged.
func NewAuditor(log *zap.Logger, pub Publisher) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{log: log, pub: pub}
}

// SuspiciousAccess reports an attempt to reach another session's data.
func (a *Auditor) SuspiciousAccess(ctx context.Context, ev Event) {
	ev.Kind = KindSuspiciousAccess
	a.emit(ctx, ev)
}

// SecurityEvent reports a blocked input: SSRF-rejected URL, unknown image
// signature, malformed payload.
func (a *Auditor) SecurityEvent(ctx context.Context, ev Event) {
	ev.Kind = KindSecurityValidation
	a.emit(ctx, ev)
}

// AuthFailure reports a request carrying an unknown or inactive session.
func (a *Auditor) AuthFailure(ctx context.Context, ev Event) {
	ev.Kind = KindAuthFailure
	a.emit(ctx, ev)
}

func (a *Auditor) emit(ctx context.Context, ev Event) {
	a.log.Warn("audit event",
		zap.String("kind", ev.Kind),
		zap.String("reason", ev.Reason),
		zap.String("session_id", ev.SessionID),
		zap.String("client_ip", ev.ClientIP),
		zap.String("path", ev.Path),
		zap.String("method", ev.Method),
		zap.Any("details", ev.Details),
	)
	if a.pub == nil {
		return
	}
	if err := a.pub.PublishEvent(ctx, ev); err != nil {
		a.log.Error("audit publish failed", zap.Error(err))
	}
}
