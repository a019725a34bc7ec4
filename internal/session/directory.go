package session

import (
	"sync"

	"github.com/google/uuid"
)

// Directory комнаты, загруженные в память. Создается на время жизни процесса
type Directory struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Session
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[uuid.UUID]*Session)}
}

// Ensure возвращает сессию комнаты, создавая ее при необходимости
func (d *Directory) Ensure(roomID, hostID uuid.UUID) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.rooms[roomID]; ok {
		return s
	}
	s := newSession(roomID, hostID)
	d.rooms[roomID] = s
	return s
}

func (d *Directory) Get(roomID uuid.UUID) (*Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.rooms[roomID]
	return s, ok
}

func (d *Directory) Remove(roomID uuid.UUID) {
	d.mu.Lock()
	delete(d.rooms, roomID)
	d.mu.Unlock()
}

// ByConnection находит сессии, где участвует соединение
func (d *Directory) ByConnection(connID uuid.UUID) []*Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Session
	for _, s := range d.rooms {
		if s.HasConnection(connID) {
			out = append(out, s)
		}
	}
	return out
}
