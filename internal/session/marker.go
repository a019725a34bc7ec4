package session

import (
	"sync"

	"github.com/google/uuid"
)

// Marker признак генерации ответа в комнате
type Marker struct {
	IsProcessing bool       `json:"isProcessing"`
	ChatID       *uuid.UUID `json:"chatId"`
}

type lease struct {
	token  uuid.UUID
	chatID uuid.UUID
}

// Markers реестр маркеров: не больше одного активного на комнату
type Markers struct {
	mu     sync.Mutex
	active map[uuid.UUID]lease
}

func NewMarkers() *Markers {
	return &Markers{active: make(map[uuid.UUID]lease)}
}

// Lease право на единственный вызов модели в комнате
type Lease struct {
	markers *Markers
	roomID  uuid.UUID
	token   uuid.UUID
	once    sync.Once
}

// TryAcquire ставит маркер, если комната свободна
func (m *Markers) TryAcquire(roomID, chatID uuid.UUID) (*Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[roomID]; busy {
		return nil, false
	}
	token := uuid.New()
	m.active[roomID] = lease{token: token, chatID: chatID}
	return &Lease{markers: m, roomID: roomID, token: token}, true
}

// Release снимает маркер. Повторные вызовы ничего не делают
func (l *Lease) Release() {
	l.once.Do(func() {
		l.markers.mu.Lock()
		defer l.markers.mu.Unlock()
		if cur, ok := l.markers.active[l.roomID]; ok && cur.token == l.token {
			delete(l.markers.active, l.roomID)
		}
	})
}

func (l *Lease) RoomID() uuid.UUID {
	return l.roomID
}

func (m *Markers) Get(roomID uuid.UUID) Marker {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.active[roomID]
	if !ok {
		return Marker{}
	}
	chatID := cur.chatID
	if chatID == uuid.Nil {
		return Marker{IsProcessing: true}
	}
	return Marker{IsProcessing: true, ChatID: &chatID}
}
