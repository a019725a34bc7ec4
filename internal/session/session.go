// Package session хранит состояние комнат в памяти процесса
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

type Phase int

const (
	AwaitingTurn Phase = iota
	Streaming
)

type Participant struct {
	UserID       uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ConnectionID uuid.UUID `json:"-"`
}

// Outcome результат хода в режиме общего промпта
type Outcome struct {
	Accepted bool
	Final    bool
	Prompt   string
}

// State копия состояния сессии для рассылки
type State struct {
	Participants     []Participant
	CurrentUserIndex int
	PromptInProgress string
	Log              []models.Entry
	Loading          bool
}

// Session сессия комнаты в режиме общего промпта
type Session struct {
	mu sync.Mutex

	RoomID uuid.UUID
	HostID uuid.UUID

	participants []Participant
	current      int
	prompt       string
	log          []models.Entry
	phase        Phase
}

func newSession(roomID, hostID uuid.UUID) *Session {
	return &Session{RoomID: roomID, HostID: hostID}
}

// AddParticipant добавляет или обновляет участника. Хост всегда первый
func (s *Session) AddParticipant(p Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.participants {
		if s.participants[i].UserID == p.UserID {
			s.participants[i] = p
			return
		}
	}

	if p.UserID == s.HostID {
		s.participants = append([]Participant{p}, s.participants...)
		if len(s.participants) > 1 {
			s.current++
		}
		return
	}
	s.participants = append(s.participants, p)
}

// RemoveConnection убирает участника соединения и пересчитывает указатель хода.
// Возвращает false, если такого участника нет.
func (s *Session) RemoveConnection(connID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.participants {
		if p.ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	s.participants = append(s.participants[:idx], s.participants[idx+1:]...)
	s.current = reindex(s.current, idx, len(s.participants))
	return true
}

// reindex: removed < pointer сдвигает указатель назад, removed == pointer оставляет его
// на следующем участнике (по модулю), removed > pointer не меняет
func reindex(pointer, removed, n int) int {
	if n == 0 {
		return 0
	}
	switch {
	case removed < pointer:
		pointer--
	case removed == pointer:
		pointer %= n
	}
	if pointer >= n {
		pointer = 0
	}
	return pointer
}

func (s *Session) HasConnection(connID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ConnectionID == connID {
			return true
		}
	}
	return false
}

// Submit принимает ход участника. Ход не в очередь молча игнорируется
func (s *Session) Submit(userID uuid.UUID, text string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.participants)
	if n == 0 || s.phase == Streaming || s.current >= n || s.participants[s.current].UserID != userID {
		return Outcome{}
	}

	s.prompt = text
	if s.current+1 >= n {
		s.phase = Streaming
		return Outcome{Accepted: true, Final: true, Prompt: text}
	}

	s.current = (s.current + 1) % n
	return Outcome{Accepted: true}
}

func (s *Session) AppendLog(e models.Entry) {
	s.mu.Lock()
	s.log = append(s.log, e)
	s.mu.Unlock()
}

// CompleteRound сбрасывает промпт и возвращает ход хосту
func (s *Session) CompleteRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = ""
	s.current = 0
	s.phase = AwaitingTurn
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Participants:     append([]Participant(nil), s.participants...),
		CurrentUserIndex: s.current,
		PromptInProgress: s.prompt,
		Log:              append([]models.Entry(nil), s.log...),
		Loading:          s.phase == Streaming,
	}
}

// IsHostConnection true, если соединение принадлежит хосту комнаты
func (s *Session) IsHostConnection(connID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ConnectionID == connID {
			return p.UserID == s.HostID
		}
	}
	return false
}
