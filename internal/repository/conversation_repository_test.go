package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/fanline/internal/model"
	"github.com/d60-Lab/fanline/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestEnsureIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	unread := NewUnreadRepository(db)
	ctx := context.Background()

	conv := &model.Conversation{
		ConversationID: model.ConversationIDFor("bob", "alice"),
		ChatType:       model.ChatTypeSingle,
		Participants:   model.ParticipantsJSON([]string{"alice", "bob"}),
	}
	require.NoError(t, repo.Ensure(ctx, conv, []string{"alice", "bob"}))

	// a racing first contact from the other direction changes nothing
	again := &model.Conversation{
		ConversationID: model.ConversationIDFor("alice", "bob"),
		ChatType:       model.ChatTypeSingle,
		Participants:   model.ParticipantsJSON([]string{"bob", "alice"}),
	}
	require.NoError(t, repo.Ensure(ctx, again, []string{"bob", "alice"}))

	var convCount, unreadCount int64
	require.NoError(t, db.Model(&model.Conversation{}).Count(&convCount).Error)
	require.NoError(t, db.Model(&model.UnreadCount{}).Count(&unreadCount).Error)
	require.EqualValues(t, 1, convCount)
	require.EqualValues(t, 2, unreadCount)

	row, err := unread.Get(ctx, conv.ConversationID, "alice")
	require.NoError(t, err)
	require.Zero(t, row.Count)
}

func TestUnreadIncrementIgnoresMissingRow(t *testing.T) {
	db := newTestDB(t)
	unread := NewUnreadRepository(db)
	ctx := context.Background()

	require.NoError(t, unread.Increment(ctx, "nope", "alice"))
	_, err := unread.Get(ctx, "nope", "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadStatusUpsertIsMonotonic(t *testing.T) {
	db := newTestDB(t)
	reads := NewReadStatusRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	advanced, err := reads.Upsert(ctx, "m1", "bob", model.StatusDelivered, now)
	require.NoError(t, err)
	require.True(t, advanced)

	advanced, err = reads.Upsert(ctx, "m1", "bob", model.StatusRead, now.Add(time.Second))
	require.NoError(t, err)
	require.True(t, advanced)

	// late DELIVERED after READ is refused
	advanced, err = reads.Upsert(ctx, "m1", "bob", model.StatusDelivered, now.Add(2*time.Second))
	require.NoError(t, err)
	require.False(t, advanced)

	row, err := reads.Get(ctx, "m1", "bob")
	require.NoError(t, err)
	require.Equal(t, model.StatusRead, row.Status)
}

func TestListByUserOrdersByActivity(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice", "bob"}, {"alice", "carol"}} {
		conv := &model.Conversation{
			ConversationID: model.ConversationIDFor(pair[0], pair[1]),
			ChatType:       model.ChatTypeSingle,
			Participants:   model.ParticipantsJSON([]string{pair[0], pair[1]}),
		}
		require.NoError(t, repo.Ensure(ctx, conv, []string{pair[0], pair[1]}))
	}

	now := time.Now().UTC()
	require.NoError(t, repo.UpdateLastMessage(ctx, "alice_bob", "old", "bob", now.Add(-time.Hour)))
	require.NoError(t, repo.UpdateLastMessage(ctx, "alice_carol", "new", "carol", now))

	convs, err := repo.ListByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, "alice_carol", convs[0].ConversationID)

	convs, err = repo.ListByUser(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
}
