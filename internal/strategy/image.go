package strategy

import (
	"context"

	"gorm.io/datatypes"

	"chatgate/internal/chat"
	"chatgate/internal/session"
)

// imageStubPayload is the fixed body for the unimplemented image mode.
// It is persisted verbatim as the assistant turn.
const imageStubPayload = `{"status": "stub", "message": "Image generation is not implemented. This is a placeholder response.", "image_url": null}`

// ImageStrategy is a fail-closed placeholder: generation requests are
// accepted and quota-tracked under their own mode, but answered with a
// fixed JSON payload instead of an upstream call.
type ImageStrategy struct {
	repo *chat.Repo
}

func NewImageStrategy(repo *chat.Repo) *ImageStrategy {
	return &ImageStrategy{repo: repo}
}

func (s *ImageStrategy) Purpose() []string { return []string{ModeImage} }

func (s *ImageStrategy) RunValidation(ctx context.Context, sessionID string, kind session.ReferenceKind) (bool, error) {
	return imageQuotaAllowed(ctx, s.repo, sessionID, ModeImage, kind)
}

func (s *ImageStrategy) ResponseContentType() string { return "application/json" }

func (s *ImageStrategy) GenerateResponse(ctx context.Context, in Input) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		userMsg := &chat.Message{
			ChatID:  in.Chat.ID,
			Role:    chat.RoleUser,
			Mode:    ModeImage,
			Content: in.Prompt,
		}
		if err := s.repo.CreateMessage(ctx, userMsg); err != nil {
			errs <- storeErr(err)
			return
		}

		assistant := &chat.Message{
			ChatID:            in.Chat.ID,
			PreviousMessageID: &userMsg.ID,
			Role:              chat.RoleAssistant,
			Mode:              ModeImage,
			Content:           imageStubPayload,
			Metadata: datatypes.JSONMap{
				"provider": "stub",
				"model":    "none",
				"status":   "not_implemented",
			},
		}
		if err := s.repo.CreateMessage(ctx, assistant); err != nil {
			errs <- storeErr(err)
			return
		}

		select {
		case chunks <- imageStubPayload:
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}
