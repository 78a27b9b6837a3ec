package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"gorm.io/datatypes"

	"chatgate/internal/chat"
	"chatgate/internal/llm"
	"chatgate/internal/session"
)

// Image modes are signed-in only and allow at most 3 prior uses each,
// tracked per mode name.
const imageModeLimit = 3

func imageQuotaAllowed(ctx context.Context, repo *chat.Repo, sessionID, mode string, kind session.ReferenceKind) (bool, error) {
	if kind != session.SignedInUser {
		return false, nil
	}
	used, err := repo.CountUserMessages(ctx, sessionID, mode)
	if err != nil {
		return false, err
	}
	return used < imageModeLimit, nil
}

// ImageAnalysisStrategy answers questions about a supplied image through
// the provider's vision model. Exactly one of Input.ImageURL or
// Input.ImagePayload is expected; the client enforces that again at call
// time and fails the stream if the invariant is broken.
type ImageAnalysisStrategy struct {
	repo   *chat.Repo
	client llm.Client
}

func NewImageAnalysisStrategy(repo *chat.Repo, client llm.Client) *ImageAnalysisStrategy {
	return &ImageAnalysisStrategy{repo: repo, client: client}
}

func (s *ImageAnalysisStrategy) Purpose() []string { return []string{ModeImageAnalysis} }

func (s *ImageAnalysisStrategy) RunValidation(ctx context.Context, sessionID string, kind session.ReferenceKind) (bool, error) {
	return imageQuotaAllowed(ctx, s.repo, sessionID, ModeImageAnalysis, kind)
}

func (s *ImageAnalysisStrategy) ResponseContentType() string { return "text/plain" }

func (s *ImageAnalysisStrategy) GenerateResponse(ctx context.Context, in Input) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		userMsg := &chat.Message{
			ChatID:   in.Chat.ID,
			Role:     chat.RoleUser,
			Mode:     ModeImageAnalysis,
			Content:  in.Prompt,
			Metadata: imageInputMeta(in),
		}
		if err := s.repo.CreateMessage(ctx, userMsg); err != nil {
			errs <- storeErr(err)
			return
		}

		history, err := s.repo.ListMessages(ctx, in.Chat.ID)
		if err != nil {
			errs <- storeErr(err)
			return
		}
		// Image turns carry no reusable text, so prior context is the plain
		// chat exchange only.
		prior := make([]llm.Message, 0, len(history))
		for _, m := range history {
			if m.Mode != ModeChat {
				continue
			}
			switch m.Role {
			case chat.RoleUser:
				prior = append(prior, llm.Message{Role: "user", Content: m.Content})
			case chat.RoleAssistant:
				prior = append(prior, llm.Message{Role: "assistant", Content: m.Content})
			}
		}

		pChunks, pErrs := s.client.StreamVision(ctx, llm.VisionRequest{
			Prompt:       in.Prompt,
			ImageURL:     in.ImageURL,
			ImagePayload: in.ImagePayload,
			Prior:        prior,
		})

		var b strings.Builder
		for c := range pChunks {
			b.WriteString(c)
			select {
			case chunks <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := <-pErrs; err != nil {
			errs <- err
			return
		}

		assistant := &chat.Message{
			ChatID:            in.Chat.ID,
			PreviousMessageID: &userMsg.ID,
			Role:              chat.RoleAssistant,
			Mode:              ModeImageAnalysis,
			Content:           b.String(),
			Metadata: datatypes.JSONMap{
				"provider":      s.client.Name(),
				"model":         s.client.VisionModelName(),
				"master_prompt": "applied",
			},
		}
		if err := s.repo.CreateMessage(ctx, assistant); err != nil {
			errs <- storeErr(err)
		}
	}()

	return chunks, errs
}

// imageInputMeta records which image input was supplied and a digest of
// it. Raw image bytes never reach the store.
func imageInputMeta(in Input) datatypes.JSONMap {
	meta := datatypes.JSONMap{}
	switch {
	case in.ImageURL != "":
		meta["image_source"] = "url"
		meta["image_url"] = in.ImageURL
		meta["image_sha256"] = sha256Hex(in.ImageURL)
	case in.ImagePayload != "":
		meta["image_source"] = "base64"
		meta["image_sha256"] = sha256Hex(in.ImagePayload)
	}
	return meta
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
