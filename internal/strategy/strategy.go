package strategy

import (
	"context"
	"errors"
	"fmt"

	"chatgate/internal/chat"
	"chatgate/internal/session"
)

// ErrStore marks persistence failures inside a running generation so the
// transport can report them as internal errors rather than upstream ones.
var ErrStore = errors.New("strategy: store failure")

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStore, err)
}

// Built-in mode names. The mode field on requests is free text; anything
// outside the registered set resolves to the invalid variant at dispatch
// time.
const (
	ModeChat          = "chat"
	ModeImageAnalysis = "image_analysis"
	ModeImage         = "image"
)

// Input carries one generation request into a variant. The chat has
// already been resolved (created or reused) by the caller.
type Input struct {
	Prompt       string
	Chat         *chat.Chat
	SessionID    string
	ImageURL     string
	ImagePayload string
}

// Strategy is implemented once per mode. A variant owns the full
// lifecycle of a turn: eligibility, persistence of both sides of the
// exchange, and production of the streamed reply.
type Strategy interface {
	// Purpose lists the mode names this variant serves. The dispatcher
	// builds its table from these at startup.
	Purpose() []string

	// RunValidation reports whether the session may run this mode right
	// now, counting prior spend before the new turn is persisted. A false
	// return is a policy denial, not a fault.
	RunValidation(ctx context.Context, sessionID string, kind session.ReferenceKind) (bool, error)

	// ResponseContentType tells the transport how to label the stream.
	ResponseContentType() string

	// GenerateResponse persists the user turn, yields the reply chunk by
	// chunk, and persists the assistant turn only after the stream has
	// fully drained. Both channels are closed by the variant; at most one
	// error is sent. A provider failure or cancellation leaves the user
	// turn as the only new row.
	GenerateResponse(ctx context.Context, in Input) (<-chan string, <-chan error)
}
