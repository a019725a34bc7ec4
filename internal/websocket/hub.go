package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/teamchat/pkg/log"
)

// MessageType определяет типы служебных сообщений
type MessageType string

const (
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
	TypeAck   MessageType = "ack"
	TypeError MessageType = "error"
)

// Message конверт всех сообщений в обе стороны. ID связывает запрос и подтверждение
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type Client struct {
	ID    uuid.UUID
	Conn  *websocket.Conn
	Send  chan []byte
	Rooms map[uuid.UUID]bool
	Hub   *Hub
	mu    sync.RWMutex

	sendMu sync.RWMutex
	closed bool
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты в комнатах
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	// Каналы для регистрации/отмены регистрации
	register   chan registration
	unregister chan *Client

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:   make(chan registration),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case r := <-h.register:
			h.registerClient(r.client)
			close(r.done)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			client.Conn.Close()
		}
		delete(h.clients, id)
	}
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

type registration struct {
	client *Client
	done   chan struct{}
}

// Register регистрирует нового клиента и ждет, пока hub его примет
func (h *Hub) Register(client *Client) {
	r := registration{client: client, done: make(chan struct{})}
	select {
	case h.register <- r:
	case <-h.ctx.Done():
		return
	}
	select {
	case <-r.done:
	case <-h.ctx.Done():
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.L().Debug().Str(log.FieldConnectionID, client.ID.String()).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	client.mu.RLock()
	rooms := make([]uuid.UUID, 0, len(client.Rooms))
	for roomID := range client.Rooms {
		rooms = append(rooms, roomID)
	}
	client.mu.RUnlock()

	for _, roomID := range rooms {
		h.removeFromRoomUnsafe(client, roomID)
	}

	delete(h.clients, client.ID)
	client.closeSend()

	log.L().Debug().Str(log.FieldConnectionID, client.ID.String()).Msg("client unregistered")
}

// JoinRoom добавляет соединение в группу рассылки комнаты
func (h *Hub) JoinRoom(connID, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client

	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()
}

// CloseRoom убирает из группы комнаты все соединения
func (h *Hub) CloseRoom(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.rooms[roomID] {
		h.removeFromRoomUnsafe(client, roomID)
	}
	delete(h.rooms, roomID)
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID uuid.UUID) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()
}

// EmitToRoom отправляет событие всем соединениям комнаты
func (h *Hub) EmitToRoom(roomID uuid.UUID, event string, payload any) {
	data, err := encode(MessageType(event), "", &roomID, payload)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldEvent, event).Msg("failed to encode event")
		return
	}
	h.SendToRoom(roomID, data)
}

// EmitToConnection отправляет событие одному соединению
func (h *Hub) EmitToConnection(connID uuid.UUID, event string, payload any) {
	data, err := encode(MessageType(event), "", nil, payload)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldEvent, event).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[connID]; ok {
		client.enqueue(data)
	}
}

// SendToRoom отправляет сообщение в комнату
func (h *Hub) SendToRoom(roomID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		client.enqueue(message)
	}
}

func (h *Hub) ping() {
	data, err := encode(TypePing, "", nil, nil)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.enqueue(data)
	}
}

func encode(t MessageType, id string, roomID *uuid.UUID, payload any) ([]byte, error) {
	msg := Message{Type: t, ID: id, RoomID: roomID, Timestamp: time.Now()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}
