package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/session"
	"github.com/thereayou/teamchat/pkg/log"
)

const codeAttempts = 5

// Lifecycle создание комнат, вход участников и обработка отключений
type Lifecycle struct {
	store       Store
	directory   *session.Directory
	joins       *session.KeyedMutex
	broadcaster *Broadcaster
	emitter     Emitter
	tickets     TicketIssuer
	newCode     func() (string, error)
}

func NewLifecycle(store Store, directory *session.Directory, broadcaster *Broadcaster, emitter Emitter, tickets TicketIssuer) *Lifecycle {
	return &Lifecycle{
		store:       store,
		directory:   directory,
		joins:       session.NewKeyedMutex(),
		broadcaster: broadcaster,
		emitter:     emitter,
		tickets:     tickets,
		newCode: func() (string, error) {
			return gonanoid.Generate(config.RoomCodeChars, config.RoomCodeLength)
		},
	}
}

// JoinResult итог входа в комнату
type JoinResult struct {
	Room   models.Room
	User   models.User
	ChatID uuid.UUID
	Ticket string
}

// CreateRoom создает комнату с хостом. Хост остается offline до входа
func (l *Lifecycle) CreateRoom(ctx context.Context, hostName string) (*models.Room, error) {
	hostName = strings.TrimSpace(hostName)

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := l.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}

		room, _, err := l.store.CreateRoomWithHost(ctx, code, hostName)
		if errors.Is(err, database.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}

		log.Ctx(ctx).Info().
			Str(log.FieldRoomID, room.ID.String()).
			Str(log.FieldRoomCode, room.Code).
			Msg("room created")
		return room, nil
	}

	return nil, fmt.Errorf("create room: %w", database.ErrCodeTaken)
}

// JoinRoom привязывает соединение к участнику комнаты
func (l *Lifecycle) JoinRoom(ctx context.Context, connID uuid.UUID, roomCode, userName string) (*JoinResult, error) {
	userName = strings.TrimSpace(userName)

	room, err := l.activeRoom(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	unlock := l.joins.Lock(room.ID)
	defer unlock()

	// комната могла закрыться, пока вход ждал блокировку
	room, err = l.store.GetRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("reload room: %w", err)
	}
	if !room.Active {
		return nil, ErrRoomNotFound
	}

	user, err := l.bindUser(ctx, room, connID, userName)
	if err != nil {
		return nil, err
	}

	if err := l.enterSession(ctx, room, user, connID); err != nil {
		return nil, err
	}

	res := &JoinResult{Room: *room, User: *user}
	if chat, err := l.store.GetIndividualChat(ctx, user.ID); err == nil {
		res.ChatID = chat.ID
	} else {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldUserID, user.ID.String()).Msg("individual chat lookup failed")
	}
	if l.tickets != nil {
		ticket, err := l.tickets.Issue(room.ID, user.ID, user.Name)
		if err != nil {
			return nil, fmt.Errorf("issue ticket: %w", err)
		}
		res.Ticket = ticket
	}

	l.emitter.JoinRoom(connID, room.ID)
	l.broadcaster.Broadcast(ctx, room.ID)

	log.Ctx(ctx).Info().
		Str(log.FieldRoomID, room.ID.String()).
		Str(log.FieldUserID, user.ID.String()).
		Str(log.FieldConnectionID, connID.String()).
		Msg("user joined room")
	return res, nil
}

func (l *Lifecycle) bindUser(ctx context.Context, room *models.Room, connID uuid.UUID, userName string) (*models.User, error) {
	// повторный вход с уже привязанного соединения
	if bound, err := l.store.FindUserByConnection(ctx, room.ID, connID); err == nil {
		return bound, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find user by connection: %w", err)
	}

	existing, err := l.store.FindUserByName(ctx, room.ID, userName)
	switch {
	case err == nil:
		if existing.Online && existing.ConnectionID != nil && *existing.ConnectionID != connID {
			return nil, ErrNameTaken
		}
		if err := l.store.BindUser(ctx, existing.ID, connID); err != nil {
			return nil, fmt.Errorf("bind user: %w", err)
		}
		existing.Online = true
		existing.ConnectionID = &connID
		return existing, nil

	case errors.Is(err, database.ErrNotFound):
		user, _, err := l.store.CreateUserWithChat(ctx, room.ID, userName, connID)
		switch {
		case errors.Is(err, database.ErrRoomFull):
			return nil, ErrRoomFull
		case errors.Is(err, database.ErrNameTaken):
			return nil, ErrNameTaken
		case err != nil:
			return nil, fmt.Errorf("create user: %w", err)
		}
		return user, nil

	default:
		return nil, fmt.Errorf("find user by name: %w", err)
	}
}

// enterSession добавляет участника в сессию общего промпта, поднимая ее при необходимости
func (l *Lifecycle) enterSession(ctx context.Context, room *models.Room, user *models.User, connID uuid.UUID) error {
	s, ok := l.directory.Get(room.ID)
	if !ok {
		hostID := user.ID
		if !user.IsHost {
			users, err := l.store.GetRoomUsers(ctx, room.ID)
			if err != nil {
				return fmt.Errorf("load room users: %w", err)
			}
			for _, u := range users {
				if u.IsHost {
					hostID = u.ID
					break
				}
			}
		}
		s = l.directory.Ensure(room.ID, hostID)
	}

	s.AddParticipant(session.Participant{UserID: user.ID, Name: user.Name, ConnectionID: connID})
	return nil
}

// Disconnect обрабатывает закрытие соединения. Уход хоста закрывает комнату
func (l *Lifecycle) Disconnect(ctx context.Context, connID uuid.UUID) {
	closed := make(map[uuid.UUID]bool)
	affected := make(map[uuid.UUID]bool)

	for _, s := range l.directory.ByConnection(connID) {
		unlock := l.joins.Lock(s.RoomID)
		if s.IsHostConnection(connID) {
			l.closeRoom(ctx, s.RoomID)
			closed[s.RoomID] = true
		} else if s.RemoveConnection(connID) {
			affected[s.RoomID] = true
		}
		unlock()
	}

	roomIDs, err := l.store.MarkConnectionOffline(ctx, connID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldConnectionID, connID.String()).Msg("failed to mark connection offline")
	}
	for _, id := range roomIDs {
		affected[id] = true
	}

	for id := range affected {
		if !closed[id] {
			l.broadcaster.Broadcast(ctx, id)
		}
	}
}

func (l *Lifecycle) closeRoom(ctx context.Context, roomID uuid.UUID) {
	if err := l.store.CloseRoom(ctx, roomID); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID.String()).Msg("failed to close room")
	}
	l.directory.Remove(roomID)
	l.emitter.EmitToRoom(roomID, EventRoomClosed, RoomClosedEvent{Message: hostLeftMessage})
	l.emitter.CloseRoom(roomID)

	log.Ctx(ctx).Info().Str(log.FieldRoomID, roomID.String()).Msg("host left, room closed")
}

func (l *Lifecycle) activeRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := l.store.GetRoomByCode(ctx, normalizeCode(code))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if !room.Active {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RoomInfo краткая информация о комнате по коду
func (l *Lifecycle) RoomInfo(ctx context.Context, code string) (*models.Room, int, error) {
	room, err := l.activeRoom(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	online, err := l.store.CountOnlineUsers(ctx, room.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("count online users: %w", err)
	}
	return room, online, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
