package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/fanline/internal/model"
	"github.com/d60-Lab/fanline/internal/repository"
)

func newChatService(t *testing.T) (*ChatService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewChatService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewUnreadRepository(db),
		repository.NewReadStatusRepository(db),
		NewBestEffort(),
	)
	return svc, db
}

func sendText(t *testing.T, svc *ChatService, conversationID, sender, content string) *model.Message {
	t.Helper()
	msg, err := svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: conversationID,
		SenderID:       sender,
		SenderUsername: sender,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

func TestConversationIDIsOrderIndependent(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	second, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	require.Equal(t, "alice_bob", first.ConversationID)
	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Equal(t, model.ChatTypeSingle, first.ChatType)
	require.ElementsMatch(t, []string{"alice", "bob"}, first.ParticipantIDs())
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ConversationID,
		SenderID:       "mallory",
		Content:        "hi",
	})
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendMessageBumpsRecipientUnreadOnly(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	sendText(t, svc, conv.ConversationID, "alice", "hi")
	sendText(t, svc, conv.ConversationID, "alice", "there")

	bobUnread, err := svc.UnreadFor(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 2, bobUnread)

	aliceUnread, err := svc.UnreadFor(ctx, conv.ConversationID, "alice")
	require.NoError(t, err)
	require.Zero(t, aliceUnread)
}

func TestSendMessageUpdatesLastMessageSnapshot(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	sendText(t, svc, conv.ConversationID, "bob", "latest words")

	conv, err = svc.GetConversation(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "latest words", conv.LastMessage)
	require.Equal(t, "bob", conv.LastMessageBy)
	require.NotNil(t, conv.LastMessageAt)
}

func TestMarkAsReadResetsBadgeAndStampsReceipts(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	m1 := sendText(t, svc, conv.ConversationID, "alice", "one")
	m2 := sendText(t, svc, conv.ConversationID, "alice", "two")

	ids, err := svc.MarkAsRead(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{m1.ID, m2.ID}, ids)

	unread, err := svc.UnreadFor(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	require.Zero(t, unread)

	// receipts are monotonic: a second pass advances nothing
	ids, err = svc.MarkAsRead(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	require.Empty(t, ids)

	// messages themselves got promoted to READ
	msg, err := svc.GetMessage(ctx, m1.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRead, msg.Status)

	// unread counting resumes after the reset
	sendText(t, svc, conv.ConversationID, "alice", "three")
	unread, err = svc.UnreadFor(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)
}

func TestStatusNeverDowngrades(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msg := sendText(t, svc, conv.ConversationID, "alice", "hi")

	_, advanced, err := svc.UpdateMessageStatus(ctx, msg.ID, "bob", model.StatusRead)
	require.NoError(t, err)
	require.True(t, advanced)

	// a late DELIVERED must not roll READ back
	_, advanced, err = svc.UpdateMessageStatus(ctx, msg.ID, "bob", model.StatusDelivered)
	require.NoError(t, err)
	require.False(t, advanced)

	got, err := svc.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRead, got.Status)
}

func TestUpdateMessageStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msg := sendText(t, svc, conv.ConversationID, "alice", "hi")

	_, _, err = svc.UpdateMessageStatus(ctx, msg.ID, "bob", "SEEN")
	require.Error(t, err)
}

func TestDeleteMessageAuthorOnly(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msg := sendText(t, svc, conv.ConversationID, "alice", "oops")

	_, err = svc.DeleteMessage(ctx, msg.ID, "bob")
	require.ErrorIs(t, err, ErrNotAuthor)

	deleted, err := svc.DeleteMessage(ctx, msg.ID, "alice")
	require.NoError(t, err)
	require.True(t, deleted.IsDeleted)
	require.Equal(t, model.DeletedPlaceholder, deleted.Content)
	require.NotNil(t, deleted.DeletedAt)
}

func TestReactionsLastWriteWins(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msg := sendText(t, svc, conv.ConversationID, "alice", "hi")

	_, err = svc.AddReaction(ctx, msg.ID, "bob", "👍")
	require.NoError(t, err)
	updated, err := svc.AddReaction(ctx, msg.ID, "bob", "❤️")
	require.NoError(t, err)
	require.Equal(t, "❤️", updated.Reactions["bob"])
	require.Len(t, updated.Reactions, 1)

	updated, err = svc.RemoveReaction(ctx, msg.ID, "bob")
	require.NoError(t, err)
	require.NotContains(t, updated.Reactions, "bob")
}

func TestReactionsOnDeletedMessageAccepted(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msg := sendText(t, svc, conv.ConversationID, "alice", "gone soon")
	_, err = svc.DeleteMessage(ctx, msg.ID, "alice")
	require.NoError(t, err)

	updated, err := svc.AddReaction(ctx, msg.ID, "bob", "👻")
	require.NoError(t, err)
	require.Equal(t, "👻", updated.Reactions["bob"])
}

func TestListConversationsOrderAndBadges(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	older, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	newer, err := svc.GetOrCreateConversation(ctx, "alice", "carol")
	require.NoError(t, err)

	sendText(t, svc, older.ConversationID, "bob", "first")
	time.Sleep(5 * time.Millisecond)
	sendText(t, svc, newer.ConversationID, "carol", "second")

	list, err := svc.ListConversations(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ConversationID, list[0].ConversationID)
	require.EqualValues(t, 1, list[0].UnreadCount)
	require.EqualValues(t, 1, list[1].UnreadCount)

	// bob only sees his own conversation
	list, err = svc.ListConversations(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, older.ConversationID, list[0].ConversationID)
}

func TestGroupConversation(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.CreateGroupConversation(ctx, []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	require.Equal(t, model.ChatTypeGroup, conv.ChatType)

	sendText(t, svc, conv.ConversationID, "alice", "hello all")
	for _, uid := range []string{"bob", "carol"} {
		unread, err := svc.UnreadFor(ctx, conv.ConversationID, uid)
		require.NoError(t, err)
		require.EqualValues(t, 1, unread, "user %s", uid)
	}
}

func TestDeleteConversation(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msg := sendText(t, svc, conv.ConversationID, "bob", "secret")

	require.ErrorIs(t, svc.DeleteConversation(ctx, conv.ConversationID, "mallory"), ErrNotParticipant)
	require.NoError(t, svc.DeleteConversation(ctx, conv.ConversationID, "alice"))

	got, err := svc.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.True(t, got.IsDeleted)

	unread, err := svc.UnreadFor(ctx, conv.ConversationID, "alice")
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestSearchSkipsDeletedMessages(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	kept := sendText(t, svc, conv.ConversationID, "alice", "pizza tonight?")
	gone := sendText(t, svc, conv.ConversationID, "alice", "pizza yesterday")
	_, err = svc.DeleteMessage(ctx, gone.ID, "alice")
	require.NoError(t, err)

	found, err := svc.SearchMessages(ctx, conv.ConversationID, "pizza", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, kept.ID, found[0].ID)
}

func TestListMediaFiltersByType(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	sendText(t, svc, conv.ConversationID, "alice", "plain text")
	img, err := svc.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ConversationID,
		SenderID:       "alice",
		MessageType:    model.MessageTypeImage,
		MediaURL:       "https://cdn.example.com/a.jpg",
	})
	require.NoError(t, err)

	media, err := svc.ListMedia(ctx, conv.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, media, 1)
	require.Equal(t, img.ID, media[0].ID)
}

func TestLoadMessagesPagesBackwards(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	var all []*model.Message
	for _, content := range []string{"one", "two", "three"} {
		all = append(all, sendText(t, svc, conv.ConversationID, "alice", content))
		time.Sleep(5 * time.Millisecond)
	}

	// newest page, chronological order within it
	page, err := svc.LoadMessages(ctx, conv.ConversationID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "two", page[0].Content)
	require.Equal(t, "three", page[1].Content)

	before := all[1].CreatedAt
	page, err = svc.LoadMessages(ctx, conv.ConversationID, &before, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "one", page[0].Content)
}
