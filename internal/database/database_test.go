package database_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/database/dbtest"
	"github.com/thereayou/teamchat/internal/models"
)

func TestCreateRoomWithHost(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, host, err := db.CreateRoomWithHost(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	assert.True(t, room.Active)
	assert.True(t, host.IsHost)
	assert.False(t, host.Online)

	chats, err := db.GetRoomChats(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, models.ChatGroup, chats[0].Type)
	assert.Equal(t, "Group Chat", chats[0].Name)
	assert.Equal(t, "Alice's Chat", chats[1].Name)
	assert.True(t, chats[1].OwnedBy(host.ID))

	_, _, err = db.CreateRoomWithHost(ctx, "ABC123", "Carol")
	assert.ErrorIs(t, err, database.ErrCodeTaken)

	_, err = db.GetRoomByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCreateUserWithChat(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, _, err := db.CreateRoomWithHost(ctx, "ROOM01", "Alice")
	require.NoError(t, err)

	bob, chat, err := db.CreateUserWithChat(ctx, room.ID, "Bob", uuid.New())
	require.NoError(t, err)
	assert.True(t, bob.Online)
	assert.Equal(t, "Bob's Chat", chat.Name)

	_, _, err = db.CreateUserWithChat(ctx, room.ID, "bob", uuid.New())
	assert.ErrorIs(t, err, database.ErrNameTaken)

	found, err := db.FindUserByName(ctx, room.ID, "BOB")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, found.ID)

	own, err := db.GetIndividualChat(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, own.ID)
}

func TestCreateUserRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, _, err := db.CreateRoomWithHost(ctx, "ROOM02", "Host")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err := db.CreateUserWithChat(ctx, room.ID, fmt.Sprintf("guest%d", i), uuid.New())
		require.NoError(t, err)
	}

	_, _, err = db.CreateUserWithChat(ctx, room.ID, "late", uuid.New())
	assert.ErrorIs(t, err, database.ErrRoomFull)

	n, err := db.CountOnlineUsers(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestConnectionBinding(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, host, err := db.CreateRoomWithHost(ctx, "ROOM03", "Alice")
	require.NoError(t, err)

	conn := uuid.New()
	require.NoError(t, db.BindUser(ctx, host.ID, conn))

	bound, err := db.FindUserByConnection(ctx, room.ID, conn)
	require.NoError(t, err)
	assert.Equal(t, host.ID, bound.ID)

	rooms, err := db.MarkConnectionOffline(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{room.ID}, rooms)

	user, err := db.GetUser(ctx, host.ID)
	require.NoError(t, err)
	assert.False(t, user.Online)
	assert.Nil(t, user.ConnectionID)

	rooms, err = db.MarkConnectionOffline(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestAppendMessageCounts(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, host, err := db.CreateRoomWithHost(ctx, "ROOM04", "Alice")
	require.NoError(t, err)
	chat, err := db.GetIndividualChat(ctx, host.ID)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		before, after, err := db.AppendMessage(ctx, &models.Message{
			ChatID:   chat.ID,
			SenderID: &host.ID,
			Content:  fmt.Sprintf("m%d", i),
			Role:     models.RoleUser,
		}, 3)
		require.NoError(t, err)
		assert.Equal(t, i-1, before)
		assert.Equal(t, i, after)
	}

	_, _, err = db.AppendMessage(ctx, &models.Message{ChatID: chat.ID, Content: "over", Role: models.RoleUser}, 3)
	assert.ErrorIs(t, err, database.ErrChatFull)

	_, after, err := db.AppendMessage(ctx, &models.Message{ChatID: chat.ID, Content: "reply", Role: models.RoleAssistant}, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, after)

	msgs, err := db.GetChatMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "m1", msgs[0].Content)
	assert.Equal(t, "reply", msgs[3].Content)

	recent, err := db.RecentMessages(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].Content)

	_, _, err = db.AppendMessage(ctx, &models.Message{ChatID: uuid.New(), Content: "x", Role: models.RoleUser}, 100)
	assert.ErrorIs(t, err, database.ErrNotFound)

	_ = room
}

func TestAppendMessageClosedRoom(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, host, err := db.CreateRoomWithHost(ctx, "ROOM08", "Alice")
	require.NoError(t, err)
	chat, err := db.GetIndividualChat(ctx, host.ID)
	require.NoError(t, err)

	_, _, err = db.AppendMessage(ctx, &models.Message{ChatID: chat.ID, Content: "open", Role: models.RoleUser}, 10)
	require.NoError(t, err)

	require.NoError(t, db.CloseRoom(ctx, room.ID))

	for _, limit := range []int{0, 10} {
		_, _, err = db.AppendMessage(ctx, &models.Message{ChatID: chat.ID, Content: "late", Role: models.RoleUser}, limit)
		assert.ErrorIs(t, err, database.ErrRoomClosed)
	}

	got, err := db.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)

	msgs, err := db.GetChatMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestTokensAndSummary(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	_, host, err := db.CreateRoomWithHost(ctx, "ROOM05", "Alice")
	require.NoError(t, err)
	chat, err := db.GetIndividualChat(ctx, host.ID)
	require.NoError(t, err)

	require.NoError(t, db.AddTokens(ctx, chat.ID, 40))
	require.NoError(t, db.AddTokens(ctx, chat.ID, 2))

	written, err := db.SetSummaryOnce(ctx, chat.ID, "first")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = db.SetSummaryOnce(ctx, chat.ID, "second")
	require.NoError(t, err)
	assert.False(t, written)

	got, err := db.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.TokenCount)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "first", *got.Summary)
}

func TestCloseRoomAndSnapshot(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, host, err := db.CreateRoomWithHost(ctx, "ROOM06", "Alice")
	require.NoError(t, err)
	require.NoError(t, db.BindUser(ctx, host.ID, uuid.New()))

	snap, err := db.RoomSnapshot(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, snap.Room.Active)
	require.Len(t, snap.Users, 1)
	assert.True(t, snap.Users[0].Online)
	assert.Len(t, snap.Chats, 2)

	require.NoError(t, db.CloseRoom(ctx, room.ID))

	snap, err = db.RoomSnapshot(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, snap.Room.Active)
	assert.False(t, snap.Users[0].Online)

	_, err = db.RoomSnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	room, _, err := db.CreateRoomWithHost(ctx, "ROOM07", "Alice")
	require.NoError(t, err)
	require.NoError(t, db.DeleteAll(ctx))

	_, err = db.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
