package strategy

import (
	"context"
	"strings"

	"gorm.io/datatypes"

	"chatgate/internal/chat"
	"chatgate/internal/llm"
	"chatgate/internal/session"
)

// Prior user turns allowed in chat mode before the current request is
// denied. The check runs before the new turn is persisted, so the ceiling
// bounds total allowed uses.
const (
	chatLimitSignedIn  = 3
	chatLimitAnonymous = 1
)

// ChatStrategy serves plain conversational turns against the text model.
type ChatStrategy struct {
	repo   *chat.Repo
	client llm.Client
}

func NewChatStrategy(repo *chat.Repo, client llm.Client) *ChatStrategy {
	return &ChatStrategy{repo: repo, client: client}
}

func (s *ChatStrategy) Purpose() []string { return []string{ModeChat} }

func (s *ChatStrategy) RunValidation(ctx context.Context, sessionID string, kind session.ReferenceKind) (bool, error) {
	used, err := s.repo.CountUserMessages(ctx, sessionID, ModeChat)
	if err != nil {
		return false, err
	}
	if kind == session.SignedInUser {
		return used <= chatLimitSignedIn, nil
	}
	return used <= chatLimitAnonymous, nil
}

func (s *ChatStrategy) ResponseContentType() string { return "text/plain" }

func (s *ChatStrategy) GenerateResponse(ctx context.Context, in Input) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		userMsg := &chat.Message{
			ChatID:  in.Chat.ID,
			Role:    chat.RoleUser,
			Mode:    ModeChat,
			Content: in.Prompt,
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
		turns := conversationTurns(history)

		pChunks, pErrs := s.client.Stream(ctx, turns)

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
		// Providers buffer the error before closing both channels, so this
		// read never blocks.
		if err := <-pErrs; err != nil {
			errs <- err
			return
		}

		assistant := &chat.Message{
			ChatID:            in.Chat.ID,
			PreviousMessageID: &userMsg.ID,
			Role:              chat.RoleAssistant,
			Mode:              ModeChat,
			Content:           b.String(),
			Metadata: datatypes.JSONMap{
				"provider":      s.client.Name(),
				"model":         s.client.ModelName(),
				"master_prompt": "applied",
			},
		}
		if err := s.repo.CreateMessage(ctx, assistant); err != nil {
			errs <- storeErr(err)
		}
	}()

	return chunks, errs
}

// conversationTurns maps persisted chat-mode history to model messages,
// oldest first. Image turns and summary rows carry nothing the text
// model can reuse and are skipped.
func conversationTurns(history []chat.Message) []llm.Message {
	turns := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Mode != ModeChat {
			continue
		}
		switch m.Role {
		case chat.RoleUser:
			turns = append(turns, llm.Message{Role: "user", Content: m.Content})
		case chat.RoleAssistant:
			turns = append(turns, llm.Message{Role: "assistant", Content: m.Content})
		}
	}
	return turns
}
