package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustCreateMessage(t *testing.T, repo *Repo, chatID string, role Role, mode, content string) *Message {
	t.Helper()
	m := &Message{ChatID: chatID, Role: role, Mode: mode, Content: content}
	if err := repo.CreateMessage(context.Background(), m); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func TestGetOrCreateChat(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	created, err := repo.GetOrCreateChat(ctx, "sess-1", "", "hello world")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.SessionID != "sess-1" || created.Title != "hello world" {
		t.Fatalf("unexpected chat: %+v", created)
	}

	reused, err := repo.GetOrCreateChat(ctx, "sess-1", created.ID, "different prompt")
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if reused.ID != created.ID {
		t.Fatalf("expected reuse of %s, got %s", created.ID, reused.ID)
	}
	if reused.Title != "hello world" {
		t.Fatalf("reuse must not retitle, got %q", reused.Title)
	}

	// a foreign chat id never attaches to another session's chat
	foreign, err := repo.GetOrCreateChat(ctx, "sess-2", created.ID, "hi")
	if err != nil {
		t.Fatalf("foreign: %v", err)
	}
	if foreign.ID == created.ID {
		t.Fatalf("foreign chat id was reused across sessions")
	}
	if foreign.SessionID != "sess-2" {
		t.Fatalf("unexpected owner: %s", foreign.SessionID)
	}
}

func TestGetOrCreateChat_TitleTruncation(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	long := strings.Repeat("héllo wörld ", 10)
	c, err := repo.GetOrCreateChat(context.Background(), "sess-1", "", long)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := len([]rune(c.Title)); got != 50 {
		t.Fatalf("expected 50-rune title, got %d", got)
	}
	if !strings.HasPrefix(long, c.Title) {
		t.Fatalf("title is not a prefix of the prompt")
	}
}

func TestCountUserMessages(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	mine1, _ := repo.GetOrCreateChat(ctx, "sess-1", "", "a")
	mine2, _ := repo.GetOrCreateChat(ctx, "sess-1", "", "b")
	other, _ := repo.GetOrCreateChat(ctx, "sess-2", "", "c")

	mustCreateMessage(t, repo, mine1.ID, RoleUser, "chat", "q1")
	mustCreateMessage(t, repo, mine1.ID, RoleAssistant, "chat", "a1")
	mustCreateMessage(t, repo, mine2.ID, RoleUser, "chat", "q2")
	mustCreateMessage(t, repo, mine2.ID, RoleUser, "image_analysis", "look")
	mustCreateMessage(t, repo, mine2.ID, RoleSummary, "chat", "sum")
	mustCreateMessage(t, repo, other.ID, RoleUser, "chat", "not mine")

	n, err := repo.CountUserMessages(ctx, "sess-1", "chat")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 chat-mode user messages, got %d", n)
	}

	n, err = repo.CountUserMessages(ctx, "sess-1", "image_analysis")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 image_analysis user message, got %d", n)
	}

	n, err = repo.CountUserMessages(ctx, "fresh-session", "chat")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("fresh session must start at zero, got %d", n)
	}
}

func TestListMessagesOrdering(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, _ := repo.GetOrCreateChat(ctx, "sess-1", "", "a")
	for i := 0; i < 5; i++ {
		mustCreateMessage(t, repo, c.ID, RoleUser, "chat", fmt.Sprintf("m%d", i))
	}

	asc, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(asc) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(asc))
	}
	for i := 1; i < len(asc); i++ {
		if asc[i].CreatedAt.Before(asc[i-1].CreatedAt) {
			t.Fatalf("messages not ascending at index %d", i)
		}
	}
}

func TestListMessagesPage(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c, _ := repo.GetOrCreateChat(ctx, "sess-1", "", "a")
	for i := 0; i < 25; i++ {
		mustCreateMessage(t, repo, c.ID, RoleUser, "chat", fmt.Sprintf("m%d", i))
	}

	page1, err := repo.ListMessagesPage(ctx, c.ID, 1, 10)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 10 {
		t.Fatalf("expected 10 messages on page 1, got %d", len(page1))
	}
	for i := 1; i < len(page1); i++ {
		if page1[i].CreatedAt.After(page1[i-1].CreatedAt) {
			t.Fatalf("page not descending at index %d", i)
		}
	}

	page3, err := repo.ListMessagesPage(ctx, c.ID, 3, 10)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3) != 5 {
		t.Fatalf("expected 5 messages on page 3, got %d", len(page3))
	}

	// out-of-range parameters fall back to defaults
	fallback, err := repo.ListMessagesPage(ctx, c.ID, 0, 1000)
	if err != nil {
		t.Fatalf("fallback page: %v", err)
	}
	if len(fallback) != 10 {
		t.Fatalf("expected default page size 10, got %d", len(fallback))
	}
}

func TestListChats(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	a, _ := repo.GetOrCreateChat(ctx, "sess-1", "", "first")
	b, _ := repo.GetOrCreateChat(ctx, "sess-1", "", "second")
	repo.GetOrCreateChat(ctx, "sess-2", "", "foreign")

	if err := repo.db.Model(&Chat{}).Where("id = ?", b.ID).Update("archived", true).Error; err != nil {
		t.Fatalf("archive: %v", err)
	}

	chats, err := repo.ListChats(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != a.ID {
		t.Fatalf("expected only unarchived own chat, got %+v", chats)
	}
}
