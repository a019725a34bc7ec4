package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/database/dbtest"
	"github.com/thereayou/teamchat/internal/llm"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/session"
	"github.com/thereayou/teamchat/internal/validation"
	"github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/auth"
)

type echoResponder struct{}

func (echoResponder) Complete(_ context.Context, msgs []llm.Message) (*llm.Completion, error) {
	return &llm.Completion{Text: "echo: " + msgs[len(msgs)-1].Content}, nil
}

func (echoResponder) Stream(ctx context.Context, msgs []llm.Message, onDelta func(string)) (*llm.Completion, error) {
	c, _ := echoResponder{}.Complete(ctx, msgs)
	onDelta(c.Text)
	return c, nil
}

type testServer struct {
	router    *gin.Engine
	lifecycle *services.Lifecycle
	tickets   *auth.TicketManager
	events    *EventHandler
	hub       *websocket.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Register()

	db := dbtest.New(t)
	hub := websocket.NewHub()
	go hub.Run()

	tickets := auth.NewTicketManager("test-secret", time.Hour)
	directory := session.NewDirectory()
	markers := session.NewMarkers()
	broadcaster := services.NewBroadcaster(db, directory, markers, hub, 0)
	summarizer := services.NewSummarizer(db, nil)
	orchestrator := services.NewOrchestrator(db, echoResponder{}, markers, broadcaster, hub, summarizer, services.OrchestratorOptions{})
	resolver := services.NewResolver(db, nil, nil, nil)

	lifecycle := services.NewLifecycle(db, directory, broadcaster, hub, tickets)
	turns := services.NewTurnEngine(db, directory, orchestrator, broadcaster)
	chats := services.NewChatService(db, resolver, orchestrator, summarizer, broadcaster, hub, 0)

	ctx, cancel := context.WithCancel(context.Background())
	events := NewEventHandler(ctx, lifecycle, turns, chats)
	t.Cleanup(func() {
		hub.Stop()
		cancel()
		events.Wait()
	})

	roomH := NewRoomHandler(lifecycle, chats)
	wsH := NewWebSocketHandler(hub, events, "")

	r := gin.New()
	r.GET("/healthz", Health)
	r.GET("/ws", wsH.HandleWebSocket)
	api := r.Group("/api")
	api.POST("/rooms", roomH.CreateRoom)
	api.GET("/rooms/:code", roomH.GetRoom)
	api.GET("/rooms/:code/chats/:chatId/messages", middleware.TicketMiddleware(tickets), roomH.GetChatMessages)

	return &testServer{router: r, lifecycle: lifecycle, tickets: tickets, events: events, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, body, ticket string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if ticket != "" {
		req.Header.Set("Authorization", "Bearer "+ticket)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func TestRoomEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = s.do(t, http.MethodPost, "/api/rooms", `{"hostName":"Alice"}`, "")
	require.Equal(t, http.StatusCreated, code)
	roomCode, _ := body["roomCode"].(string)
	require.Len(t, roomCode, 6)

	code, body = s.do(t, http.MethodGet, "/api/rooms/"+roomCode, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, float64(0), body["onlineCount"])

	code, body = s.do(t, http.MethodGet, "/api/rooms/NOPE12", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Room not found or is closed.", body["error"])
}

func TestCreateRoomValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing", `{}`, "Field 'hostName' is required"},
		{"too long", `{"hostName":"` + strings.Repeat("a", 51) + `"}`, "Field 'hostName' is invalid: Input exceeds maximum character limit of 50 characters"},
		{"blank", `{"hostName":"   "}`, "Field 'hostName' is invalid: Name must contain visible characters only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, http.MethodPost, "/api/rooms", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestChatMessagesEndpoint(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	room, err := s.lifecycle.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	alice, err := s.lifecycle.JoinRoom(ctx, uuid.New(), room.Code, "Alice")
	require.NoError(t, err)
	bob, err := s.lifecycle.JoinRoom(ctx, uuid.New(), room.Code, "Bob")
	require.NoError(t, err)

	path := "/api/rooms/" + room.Code + "/chats/" + alice.ChatID.String() + "/messages"

	code, _ := s.do(t, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, path, "", "forged")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodGet, path, "", alice.Ticket)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["messages"])

	code, body = s.do(t, http.MethodGet, path, "", bob.Ticket)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You cannot post in this chat.", body["error"])

	other, err := s.lifecycle.CreateRoom(ctx, "Zed")
	require.NoError(t, err)
	code, _ = s.do(t, http.MethodGet, "/api/rooms/"+other.Code+"/chats/"+alice.ChatID.String()+"/messages", "", alice.Ticket)
	assert.Equal(t, http.StatusForbidden, code)
}

type wsClient struct {
	t    *testing.T
	conn *gws.Conn
}

func dial(t *testing.T, s *testServer) *wsClient {
	t.Helper()
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

// request отправляет событие и ждет подтверждение с тем же id. Остальные события складываются в seen
func (c *wsClient) request(event string, data any, seen *[]websocket.Message) websocket.Ack {
	c.t.Helper()
	id := uuid.NewString()

	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(websocket.Message{Type: websocket.MessageType(event), ID: id, Data: raw}))

	for {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg websocket.Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type == websocket.TypeAck && msg.ID == id {
			var ack websocket.Ack
			require.NoError(c.t, json.Unmarshal(msg.Data, &ack))
			return ack
		}
		if seen != nil {
			*seen = append(*seen, msg)
		}
	}
}

func TestWebSocketRoomFlow(t *testing.T) {
	s := newTestServer(t)
	c := dial(t, s)

	ack := c.request("create_room", map[string]string{"hostName": "Alice"}, nil)
	require.Equal(t, websocket.StatusOK, ack.Status)
	created := ack.Data.(map[string]any)
	roomCode := created["roomCode"].(string)

	var seen []websocket.Message
	ack = c.request("join_room", map[string]string{"roomCode": roomCode, "userName": "Alice"}, &seen)
	require.Equal(t, websocket.StatusOK, ack.Status, ack.Message)
	joined := ack.Data.(map[string]any)
	assert.NotEmpty(t, joined["ticket"])
	chatID := joined["chatId"].(string)

	require.NotEmpty(t, seen)
	assert.Equal(t, websocket.MessageType(services.EventGameState), seen[len(seen)-1].Type)

	ack = c.request("submit_message", map[string]any{
		"roomCode": roomCode,
		"chatId":   chatID,
		"text":     strings.Repeat("x", 2001),
	}, nil)
	assert.Equal(t, websocket.StatusError, ack.Status)
	assert.Equal(t, "Field 'text' is invalid: Input exceeds maximum character limit of 2000 characters", ack.Message)

	ack = c.request("submit_message", map[string]any{
		"roomCode": roomCode,
		"chatId":   chatID,
		"text":     "hello there",
	}, nil)
	require.Equal(t, websocket.StatusOK, ack.Status, ack.Message)

	s.events.Wait()
	ack = c.request("request_chat_messages", map[string]string{"roomCode": roomCode, "chatId": chatID}, nil)
	require.Equal(t, websocket.StatusOK, ack.Status, ack.Message)
	entries := ack.Data.([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "echo: hello there", entries[1].(map[string]any)["text"])

	ack = c.request("dance", map[string]string{}, nil)
	assert.Equal(t, websocket.StatusError, ack.Status)
	assert.Equal(t, "Unknown event: dance", ack.Message)
}

func TestWebSocketJoinErrors(t *testing.T) {
	s := newTestServer(t)
	c := dial(t, s)

	ack := c.request("join_room", map[string]string{"roomCode": "ZZZZZZ", "userName": "Bob"}, nil)
	assert.Equal(t, websocket.StatusError, ack.Status)
	assert.Equal(t, "Room not found or is closed.", ack.Message)

	ack = c.request("join_room", map[string]string{"roomCode": "ab-12", "userName": "Bob"}, nil)
	assert.Equal(t, websocket.StatusError, ack.Status)
	assert.Equal(t, "Field 'roomCode' is invalid: Room code must be letters and digits", ack.Message)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		allowed, origin string
		want            bool
	}{
		{"", "https://evil.example", true},
		{"https://app.example/", "https://app.example", true},
		{"https://app.example", "https://APP.example", true},
		{"https://app.example", "https://evil.example", false},
		{"https://app.example", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, originChecker(tt.allowed)(r), "%s vs %s", tt.allowed, tt.origin)
	}
}
