package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/pkg/log"
)

// SubmitInput сообщение пользователя в чат
type SubmitInput struct {
	RoomCode          string
	ChatID            uuid.UUID
	Text              string
	Images            []string
	ReferencedChatIDs []uuid.UUID
	MentionAI         bool
}

// Submission сохраненное сообщение и все, что нужно для ответа на него
type Submission struct {
	ConnID  uuid.UUID
	Room    models.Room
	User    models.User
	Chat    models.Chat
	Message models.Message
	Count   int
	Input   SubmitInput
}

// NeedsResponse личные чаты отвечают всегда, общий только при выборе Claude получателем
func (s *Submission) NeedsResponse() bool {
	if s.Chat.Type == models.ChatIndividual {
		return true
	}
	return s.Input.MentionAI
}

type ChatService struct {
	store        Store
	resolver     *Resolver
	orchestrator *Orchestrator
	summarizer   *Summarizer
	broadcaster  *Broadcaster
	emitter      Emitter
	tokenLimit   int64
}

func NewChatService(store Store, resolver *Resolver, orchestrator *Orchestrator, summarizer *Summarizer,
	broadcaster *Broadcaster, emitter Emitter, tokenLimit int64) *ChatService {
	return &ChatService{
		store:        store,
		resolver:     resolver,
		orchestrator: orchestrator,
		summarizer:   summarizer,
		broadcaster:  broadcaster,
		emitter:      emitter,
		tokenLimit:   tokenLimit,
	}
}

// Submit проверяет права и лимиты, сохраняет сообщение и рассылает его
func (c *ChatService) Submit(ctx context.Context, connID uuid.UUID, in SubmitInput) (*Submission, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Images) == 0 {
		return nil, ErrEmptyMessage
	}

	room, user, err := c.member(ctx, connID, in.RoomCode)
	if err != nil {
		return nil, err
	}

	chat, err := c.roomChat(ctx, room.ID, in.ChatID)
	if err != nil {
		return nil, err
	}
	if chat.Type == models.ChatIndividual && !chat.OwnedBy(user.ID) {
		return nil, ErrChatForbidden
	}
	if err := chatLimitError(chat, c.tokenLimit); err != nil {
		return nil, err
	}

	msg := models.Message{
		ChatID:     chat.ID,
		SenderID:   &user.ID,
		SenderName: user.Name,
		Content:    in.Text,
		Role:       models.RoleUser,
	}
	msg.SetImages(in.Images)

	before, after, err := c.store.AppendMessage(ctx, &msg, config.MaxChatMessages)
	switch {
	case errors.Is(err, database.ErrChatFull):
		return nil, ErrChatMessageLimit
	case errors.Is(err, database.ErrRoomClosed):
		return nil, ErrRoomNotFound
	case err != nil:
		return nil, fmt.Errorf("append message: %w", err)
	}

	c.summarizer.Maybe(ctx, chat.ID, before, after)
	c.emitter.EmitToRoom(room.ID, EventNewMessage, NewMessageEvent{ChatID: chat.ID, Message: msg.Entry()})
	c.broadcaster.Broadcast(ctx, room.ID)

	return &Submission{
		ConnID:  connID,
		Room:    *room,
		User:    *user,
		Chat:    *chat,
		Message: msg,
		Count:   after,
		Input:   in,
	}, nil
}

// Respond отвечает на сообщение, если это нужно. Не больше одного вызова модели на комнату
func (c *ChatService) Respond(ctx context.Context, sub *Submission) {
	if !sub.NeedsResponse() {
		return
	}

	lease, ok := c.orchestrator.Acquire(ctx, sub.Room.ID, sub.Chat.ID)
	if !ok {
		chatID := sub.Chat.ID
		c.emitter.EmitToConnection(sub.ConnID, EventAIError, AIErrorEvent{ChatID: &chatID, Message: aiBusyMessage})
		return
	}
	defer c.orchestrator.Release(ctx, lease)

	plan := c.resolver.Plan(ctx, sub)
	if plan.Canned != "" {
		_ = c.orchestrator.DeliverCanned(ctx, sub.Room.ID, sub.Chat.ID, plan.Canned)
		return
	}
	_ = c.orchestrator.Respond(ctx, sub.Room.ID, sub.Chat.ID, plan.Messages)
}

// Messages история чата для участника, подключенного через connID
func (c *ChatService) Messages(ctx context.Context, connID uuid.UUID, roomCode string, chatID uuid.UUID) ([]models.Entry, error) {
	room, user, err := c.member(ctx, connID, roomCode)
	if err != nil {
		return nil, err
	}
	return c.history(ctx, room.ID, user.ID, chatID)
}

// History история чата по билету участника
func (c *ChatService) History(ctx context.Context, roomID, userID, chatID uuid.UUID) ([]models.Entry, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !room.Active) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	user, err := c.store.GetUser(ctx, userID)
	if err != nil || user.RoomID != room.ID {
		return nil, ErrNotInRoom
	}
	return c.history(ctx, room.ID, user.ID, chatID)
}

func (c *ChatService) history(ctx context.Context, roomID, userID, chatID uuid.UUID) ([]models.Entry, error) {
	chat, err := c.roomChat(ctx, roomID, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Type == models.ChatIndividual && !chat.OwnedBy(userID) {
		return nil, ErrChatForbidden
	}

	msgs, err := c.store.GetChatMessages(ctx, chat.ID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldChatID, chat.ID.String()).Msg("chat history read failed")
		return []models.Entry{}, nil
	}
	return models.Entries(msgs), nil
}

func (c *ChatService) member(ctx context.Context, connID uuid.UUID, roomCode string) (*models.Room, *models.User, error) {
	room, err := c.store.GetRoomByCode(ctx, normalizeCode(roomCode))
	if errors.Is(err, database.ErrNotFound) || (err == nil && !room.Active) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get room: %w", err)
	}

	user, err := c.store.FindUserByConnection(ctx, room.ID, connID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrNotInRoom
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	}
	return room, user, nil
}

func (c *ChatService) roomChat(ctx context.Context, roomID, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := c.store.GetChat(ctx, chatID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && chat.RoomID != roomID) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}
