package websocket

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub) *Client {
	c := NewClient(h, nil)
	h.registerClient(c)
	return c
}

func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case raw := <-c.Send:
			var m Message
			require.NoError(t, json.Unmarshal(raw, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func roomSize(h *Hub, roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func TestEmitToRoom(t *testing.T) {
	h := NewHub()
	a, b, outsider := newTestClient(h), newTestClient(h), newTestClient(h)
	roomID := uuid.New()

	h.JoinRoom(a.ID, roomID)
	h.JoinRoom(b.ID, roomID)
	assert.Equal(t, 2, roomSize(h, roomID))
	assert.True(t, a.IsInRoom(roomID))

	h.EmitToRoom(roomID, "new_message", map[string]string{"text": "hi"})

	for _, c := range []*Client{a, b} {
		msgs := drain(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, MessageType("new_message"), msgs[0].Type)
		require.NotNil(t, msgs[0].RoomID)
		assert.Equal(t, roomID, *msgs[0].RoomID)
		assert.JSONEq(t, `{"text":"hi"}`, string(msgs[0].Data))
	}
	assert.Empty(t, drain(t, outsider))

	h.EmitToConnection(outsider.ID, "ai_error", map[string]string{"message": "busy"})
	msgs := drain(t, outsider)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageType("ai_error"), msgs[0].Type)
}

func TestCloseRoomAndUnregister(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(h), newTestClient(h)
	roomID := uuid.New()
	h.JoinRoom(a.ID, roomID)
	h.JoinRoom(b.ID, roomID)

	h.CloseRoom(roomID)
	assert.Equal(t, 0, roomSize(h, roomID))
	assert.False(t, a.IsInRoom(roomID))

	h.JoinRoom(a.ID, roomID)
	h.unregisterClient(a)
	assert.Equal(t, 0, roomSize(h, roomID))

	// после закрытия очереди отправка не паникует
	assert.False(t, a.enqueue([]byte("x")))
	h.EmitToConnection(a.ID, "x", nil)
}

func TestReplyFiresOnce(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	r := NewReply(c, "req-1")
	assert.True(t, r.OK(map[string]string{"roomCode": "ABC123"}))
	assert.False(t, r.Error("late"))
	assert.False(t, r.OK(nil))

	msgs := drain(t, c)
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeAck, msgs[0].Type)
	assert.Equal(t, "req-1", msgs[0].ID)

	var ack struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &ack))
	assert.Equal(t, StatusOK, ack.Status)
	assert.Equal(t, "ABC123", ack.Data["roomCode"])
}

func TestReplyError(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	NewReply(c, "req-2").Error("Room is full.")

	msgs := drain(t, c)
	require.Len(t, msgs, 1)
	var ack Ack
	require.NoError(t, json.Unmarshal(msgs[0].Data, &ack))
	assert.Equal(t, StatusError, ack.Status)
	assert.Equal(t, "Room is full.", ack.Message)
}

func TestStopClosesClients(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)
	h.Stop()

	_, ok := <-c.Send
	assert.False(t, ok)
	h.EmitToConnection(c.ID, "x", nil)
}
