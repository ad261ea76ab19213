package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/testutil"
)

func strPtr(s string) *string { return &s }

func newChat(t *testing.T, repo *GormChatRepository, name *string, members ...string) *domain.Chat {
	t.Helper()
	chat := &domain.Chat{Name: name}
	parts := make([]domain.Participant, len(members))
	for i, id := range members {
		parts[i] = domain.Participant{UserID: id, IsAdmin: i == 0}
	}
	if err := repo.Create(context.Background(), chat, parts); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return chat
}

func TestChatRepositoryCreateAndParticipants(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGormChatRepository(db)

	chat := newChat(t, repo, nil, "u1", "u2")
	if chat.ID == "" {
		t.Fatal("expected chat id to be assigned")
	}

	parts, err := repo.ListParticipants(ctx, chat.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(parts))
	}
	if p, _ := domain.FindParticipant(parts, "u1"); !p.IsAdmin {
		t.Fatal("expected u1 to be admin")
	}

	added, err := repo.AddParticipant(ctx, domain.Participant{ChatID: chat.ID, UserID: "u3"})
	if err != nil || !added {
		t.Fatalf("expected u3 added, got added=%v err=%v", added, err)
	}
	added, err = repo.AddParticipant(ctx, domain.Participant{ChatID: chat.ID, UserID: "u3", IsAdmin: true})
	if err != nil || added {
		t.Fatalf("expected duplicate add to be a no-op, got added=%v err=%v", added, err)
	}
	p, err := repo.GetParticipant(ctx, chat.ID, "u3")
	if err != nil || p.IsAdmin {
		t.Fatalf("expected existing u3 row untouched, got %+v err=%v", p, err)
	}

	if err := repo.SetAdmin(ctx, chat.ID, "u3", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if err := repo.SetAdmin(ctx, chat.ID, "u3", true); err != nil {
		t.Fatalf("set admin twice: %v", err)
	}
	if err := repo.SetAdmin(ctx, chat.ID, "u9", true); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}

	if err := repo.RemoveParticipant(ctx, chat.ID, "u2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.RemoveParticipant(ctx, chat.ID, "u2"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}

	chats, err := repo.ListForUser(ctx, "u3")
	if err != nil || len(chats) != 1 || chats[0].ID != chat.ID {
		t.Fatalf("expected u3 to see the chat, got %+v err=%v", chats, err)
	}
	if chats, _ := repo.ListForUser(ctx, "u2"); len(chats) != 0 {
		t.Fatalf("expected removed user to see no chats, got %d", len(chats))
	}
}

func TestChatRepositoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	chats := NewGormChatRepository(db)
	messages := NewGormMessageRepository(db)

	chat := newChat(t, chats, nil, "u1", "u2")
	if err := chats.UpdateName(ctx, chat.ID, strPtr("team")); err != nil {
		t.Fatalf("update name: %v", err)
	}
	got, err := chats.GetByID(ctx, chat.ID)
	if err != nil || !got.HasName() || *got.Name != "team" {
		t.Fatalf("expected name team, got %+v err=%v", got, err)
	}
	if err := chats.UpdateName(ctx, chat.ID, nil); err != nil {
		t.Fatalf("clear name: %v", err)
	}
	if got, _ := chats.GetByID(ctx, chat.ID); got.HasName() {
		t.Fatalf("expected name cleared, got %q", *got.Name)
	}
	if err := chats.UpdatePicture(ctx, "missing", "x"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}

	if err := messages.Create(ctx, &domain.Message{ChatID: chat.ID, SenderID: "u1", Content: "hi"}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := chats.Delete(ctx, chat.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := chats.GetByID(ctx, chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if parts, _ := chats.ListParticipants(ctx, chat.ID); len(parts) != 0 {
		t.Fatalf("expected participants removed, got %d", len(parts))
	}
	if n, _ := messages.CountByChat(ctx, chat.ID); n != 0 {
		t.Fatalf("expected messages removed, got %d", n)
	}
	if err := chats.Delete(ctx, chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound on second delete, got %v", err)
	}
}

func TestChatRepositoryTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGormChatRepository(db)
	chat := newChat(t, repo, nil, "u1", "u2")

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx ChatRepository) error {
		if _, err := tx.AddParticipant(ctx, domain.Participant{ChatID: chat.ID, UserID: "u3"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := repo.GetParticipant(ctx, chat.ID, "u3"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected rollback to drop u3, got %v", err)
	}
}

func TestMessageRepositoryListing(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	chats := NewGormChatRepository(db)
	repo := NewGormMessageRepository(db)
	chat := newChat(t, chats, nil, "u1", "u2")

	contents := []string{"Hello there", "100% done", "snake_case", "HELLO again", "bye"}
	for _, c := range contents {
		if err := repo.Create(ctx, &domain.Message{ChatID: chat.ID, SenderID: "u1", Content: c}); err != nil {
			t.Fatalf("create %q: %v", c, err)
		}
	}

	all, err := repo.List(ctx, chat.ID, domain.ListMessagesOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(all))
	}
	for i, m := range all {
		if want := contents[len(contents)-1-i]; m.Content != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, m.Content)
		}
	}

	page, _ := repo.List(ctx, chat.ID, domain.ListMessagesOptions{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].Content != "HELLO again" || page[1].Content != "snake_case" {
		t.Fatalf("unexpected page %+v", page)
	}

	hello, _ := repo.List(ctx, chat.ID, domain.ListMessagesOptions{Search: "hello"})
	if len(hello) != 2 {
		t.Fatalf("expected case-insensitive search to match 2, got %d", len(hello))
	}
	percent, _ := repo.List(ctx, chat.ID, domain.ListMessagesOptions{Search: "%"})
	if len(percent) != 1 || percent[0].Content != "100% done" {
		t.Fatalf("expected %% to match literally, got %+v", percent)
	}
	underscore, _ := repo.List(ctx, chat.ID, domain.ListMessagesOptions{Search: "_"})
	if len(underscore) != 1 || underscore[0].Content != "snake_case" {
		t.Fatalf("expected _ to match literally, got %+v", underscore)
	}

	latest, err := repo.LatestForChats(ctx, []string{chat.ID, "empty"})
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest[chat.ID] == nil || latest[chat.ID].Content != "bye" {
		t.Fatalf("unexpected latest %+v", latest[chat.ID])
	}
	if _, ok := latest["empty"]; ok {
		t.Fatal("expected no entry for a chat without messages")
	}
}

func TestMessageRepositoryLatestForChatsUsesOneQuery(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	chats := NewGormChatRepository(db)
	repo := NewGormMessageRepository(db)

	want := make(map[string]string)
	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		chat := newChat(t, chats, nil, "u1", "u2")
		ids = append(ids, chat.ID)
		if i == 3 {
			continue
		}
		for j := 0; j <= i; j++ {
			content := chat.ID + "-" + string(rune('a'+j))
			if err := repo.Create(ctx, &domain.Message{ChatID: chat.ID, SenderID: "u2", Content: content}); err != nil {
				t.Fatalf("create: %v", err)
			}
			want[chat.ID] = content
		}
	}

	queries := 0
	err := db.Callback().Query().After("gorm:query").Register("test:count_queries", func(*gorm.DB) { queries++ })
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	latest, err := repo.LatestForChats(ctx, ids)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if queries != 1 {
		t.Fatalf("expected a single query for %d chats, got %d", len(ids), queries)
	}
	if len(latest) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(latest))
	}
	for chatID, content := range want {
		if latest[chatID] == nil || latest[chatID].Content != content {
			t.Fatalf("chat %s: expected %q, got %+v", chatID, content, latest[chatID])
		}
	}

	if empty, err := repo.LatestForChats(ctx, nil); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result for no chats, got %v (err=%v)", empty, err)
	}
}

func TestMessageRepositoryUpdateContentKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGormMessageRepository(db)

	msg := &domain.Message{ChatID: "c1", SenderID: "u1", Content: "first"}
	if err := repo.Create(ctx, msg); err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	updated, err := repo.UpdateContent(ctx, msg.ID, "second")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "second" {
		t.Fatalf("expected new content, got %q", updated.Content)
	}
	if !updated.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", msg.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(msg.CreatedAt) {
		t.Fatalf("expected updated_at after created_at, got %v", updated.UpdatedAt)
	}

	if _, err := repo.UpdateContent(ctx, "missing", "x"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGormNotificationRepository(db)

	first := &domain.Notification{UserID: "u1", Type: domain.NotificationChatAdded, Payload: []byte(`{"chat_id":"c1"}`)}
	second := &domain.Notification{UserID: "u1", Type: domain.NotificationNewMessage, Payload: []byte(`{}`)}
	for _, n := range []*domain.Notification{first, second} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := repo.MarkRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := repo.MarkRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read twice: %v", err)
	}
	if err := repo.MarkRead(ctx, "missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}

	all, _ := repo.ListByUser(ctx, "u1", false)
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(all))
	}
	unread, _ := repo.ListByUser(ctx, "u1", true)
	if len(unread) != 1 || unread[0].ID != second.ID {
		t.Fatalf("expected only the second notification unread, got %+v", unread)
	}
	got, _ := repo.GetByID(ctx, first.ID)
	if !got.IsRead || string(got.Payload) != `{"chat_id":"c1"}` {
		t.Fatalf("unexpected stored notification %+v", got)
	}
}

func TestUserRepositorySearchAndUpsert(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewGormUserRepository(db)

	users := []domain.User{
		{ID: "u1", Name: "Alice", Email: "alice@example.com"},
		{ID: "u2", Name: "Bob", Email: "bob@corp.io"},
		{ID: "u3", Name: "al_pha", Email: "third@example.com"},
	}
	for i := range users {
		if err := repo.Upsert(ctx, &users[i]); err != nil {
			t.Fatalf("upsert %s: %v", users[i].ID, err)
		}
	}

	got, err := repo.Search(ctx, "AL", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches for AL, got %d", len(got))
	}
	if byEmail, _ := repo.Search(ctx, "corp", 10); len(byEmail) != 1 || byEmail[0].ID != "u2" {
		t.Fatalf("expected email match on u2, got %+v", byEmail)
	}
	if literal, _ := repo.Search(ctx, "l_p", 10); len(literal) != 1 || literal[0].ID != "u3" {
		t.Fatalf("expected literal underscore match, got %+v", literal)
	}
	if limited, _ := repo.Search(ctx, "example", 1); len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	if err := repo.Upsert(ctx, &domain.User{ID: "u1", Name: "Alicia"}); err != nil {
		t.Fatalf("upsert rename: %v", err)
	}
	u1, err := repo.GetByID(ctx, "u1")
	if err != nil || u1.Name != "Alicia" || u1.Email != "alice@example.com" {
		t.Fatalf("expected rename keeping email, got %+v err=%v", u1, err)
	}

	byID, _ := repo.GetByIDs(ctx, []string{"u1", "u9"})
	if len(byID) != 1 || byID["u1"] == nil {
		t.Fatalf("expected only u1, got %+v", byID)
	}
	if _, err := repo.GetByID(ctx, "u9"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
