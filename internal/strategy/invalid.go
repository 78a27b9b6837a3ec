package strategy

import (
	"context"

	"chatgate/internal/session"
)

// InvalidStrategy answers unrecognized mode names. It persists nothing
// and never reaches a provider; the reply names the rejected mode so the
// caller can see what was normalized.
type InvalidStrategy struct {
	mode string
}

func NewInvalidStrategy(mode string) *InvalidStrategy {
	return &InvalidStrategy{mode: mode}
}

func (s *InvalidStrategy) Purpose() []string { return nil }

func (s *InvalidStrategy) RunValidation(ctx context.Context, sessionID string, kind session.ReferenceKind) (bool, error) {
	return true, nil
}

func (s *InvalidStrategy) ResponseContentType() string { return "text/plain" }

func (s *InvalidStrategy) GenerateResponse(ctx context.Context, in Input) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	chunks <- "Invalid mode: " + s.mode
	close(chunks)
	close(errs)
	return chunks, errs
}
