package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	ws "github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/log"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub      *ws.Hub
	events   ws.ClientMessageHandler
	upgrader websocket.Upgrader
}

// NewWebSocketHandler создает новый WebSocket handler. Пустой clientURL разрешает любой origin
func NewWebSocketHandler(hub *ws.Hub, events ws.ClientMessageHandler, clientURL string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(clientURL),
		},
	}
}

// HandleWebSocket обрабатывает WebSocket соединения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register(client)

	log.Ctx(c.Request.Context()).Debug().Str(log.FieldConnectionID, client.ID.String()).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.events)
}

func originChecker(clientURL string) func(r *http.Request) bool {
	allowed := strings.TrimRight(clientURL, "/")
	if allowed == "" {
		return func(*http.Request) bool { return true }
	}
	want, err := url.Parse(allowed)
	if err != nil {
		return func(*http.Request) bool { return false }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		got, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(got.Scheme, want.Scheme) && strings.EqualFold(got.Host, want.Host)
	}
}
