package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/session"
	"github.com/thereayou/teamchat/pkg/log"
)

type UserView struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	IsHost bool      `json:"isHost"`
	Online bool      `json:"online"`
}

type ChatView struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Type         models.ChatType `json:"type"`
	OwnerID      *uuid.UUID      `json:"ownerId"`
	MessageCount int             `json:"messageCount"`
	TokenCount   int64           `json:"tokenCount"`
	HasSummary   bool            `json:"hasSummary"`
	Locked       bool            `json:"locked"`
}

// GameState полный снимок комнаты для клиентов
type GameState struct {
	RoomID           uuid.UUID             `json:"roomId"`
	RoomCode         string                `json:"roomCode"`
	Active           bool                  `json:"active"`
	Users            []UserView            `json:"users"`
	Chats            []ChatView            `json:"chats"`
	AIStatus         session.Marker        `json:"aiStatus"`
	Participants     []session.Participant `json:"participants"`
	CurrentUserIndex int                   `json:"currentUserIndex"`
	PromptInProgress string                `json:"promptInProgress"`
	Messages         []models.Entry        `json:"messages"`
	IsLoading        bool                  `json:"isLoading"`
}

// Broadcaster рассылает снимок состояния комнаты, каждый раз перечитывая хранилище
type Broadcaster struct {
	store      Store
	directory  *session.Directory
	markers    *session.Markers
	emitter    Emitter
	tokenLimit int64
}

func NewBroadcaster(store Store, directory *session.Directory, markers *session.Markers, emitter Emitter, tokenLimit int64) *Broadcaster {
	return &Broadcaster{
		store:      store,
		directory:  directory,
		markers:    markers,
		emitter:    emitter,
		tokenLimit: tokenLimit,
	}
}

func (b *Broadcaster) State(ctx context.Context, roomID uuid.UUID) (*GameState, error) {
	snap, err := b.store.RoomSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}

	st := &GameState{
		RoomID:       snap.Room.ID,
		RoomCode:     snap.Room.Code,
		Active:       snap.Room.Active,
		Users:        make([]UserView, 0, len(snap.Users)),
		Chats:        make([]ChatView, 0, len(snap.Chats)),
		AIStatus:     b.markers.Get(roomID),
		Participants: []session.Participant{},
		Messages:     []models.Entry{},
	}

	for _, u := range snap.Users {
		st.Users = append(st.Users, UserView{ID: u.ID, Name: u.Name, IsHost: u.IsHost, Online: u.Online})
	}
	for i := range snap.Chats {
		c := &snap.Chats[i]
		st.Chats = append(st.Chats, ChatView{
			ID:           c.ID,
			Name:         c.Name,
			Type:         c.Type,
			OwnerID:      c.OwnerID,
			MessageCount: c.MessageCount,
			TokenCount:   c.TokenCount,
			HasSummary:   c.Summary != nil,
			Locked:       c.Locked(b.tokenLimit),
		})
	}

	if s, ok := b.directory.Get(roomID); ok {
		ss := s.State()
		st.Participants = ss.Participants
		st.CurrentUserIndex = ss.CurrentUserIndex
		st.PromptInProgress = ss.PromptInProgress
		st.Messages = ss.Log
		st.IsLoading = ss.Loading
	}
	if st.Participants == nil {
		st.Participants = []session.Participant{}
	}
	if st.Messages == nil {
		st.Messages = []models.Entry{}
	}

	return st, nil
}

// Broadcast отправляет снимок всем в комнате. Ошибка чтения только логируется
func (b *Broadcaster) Broadcast(ctx context.Context, roomID uuid.UUID) {
	st, err := b.State(ctx, roomID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID.String()).Msg("failed to build room state")
		return
	}
	b.emitter.EmitToRoom(roomID, EventGameState, st)
}
