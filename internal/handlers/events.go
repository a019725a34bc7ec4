package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/validation"
	"github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/log"
)

// Входящие события клиента
const (
	EventCreateRoom          websocket.MessageType = "create_room"
	EventJoinRoom            websocket.MessageType = "join_room"
	EventSubmitContribution  websocket.MessageType = "submit_contribution"
	EventSubmitMessage       websocket.MessageType = "submit_message"
	EventRequestChatMessages websocket.MessageType = "request_chat_messages"
)

// EventHandler разбирает события websocket и вызывает сервисы
type EventHandler struct {
	lifecycle *services.Lifecycle
	turns     *services.TurnEngine
	chats     *services.ChatService

	// base живет дольше соединения: ответы модели доходят до комнаты и после отключения автора
	base context.Context
	wg   sync.WaitGroup
}

func NewEventHandler(base context.Context, lifecycle *services.Lifecycle, turns *services.TurnEngine, chats *services.ChatService) *EventHandler {
	return &EventHandler{
		lifecycle: lifecycle,
		turns:     turns,
		chats:     chats,
		base:      base,
	}
}

func (h *EventHandler) HandleMessage(client *websocket.Client, msg *websocket.Message) {
	ctx := h.clientContext(h.base, client, msg.Type)
	reply := websocket.NewReply(client, msg.ID)

	switch msg.Type {
	case EventCreateRoom:
		h.createRoom(ctx, msg, reply)
	case EventJoinRoom:
		h.joinRoom(ctx, client, msg, reply)
	case EventSubmitContribution:
		h.submitContribution(ctx, client, msg, reply)
	case EventSubmitMessage:
		h.submitMessage(ctx, client, msg, reply)
	case EventRequestChatMessages:
		h.requestChatMessages(ctx, client, msg, reply)
	default:
		log.Ctx(ctx).Debug().Msg("unknown event type")
		reply.Error(fmt.Sprintf("Unknown event: %s", msg.Type))
	}
}

func (h *EventHandler) HandleDisconnect(client *websocket.Client) {
	ctx := h.clientContext(h.base, client, "disconnect")
	h.lifecycle.Disconnect(ctx, client.ID)
}

// Wait ждет фоновые ответы модели
func (h *EventHandler) Wait() {
	h.wg.Wait()
}

func (h *EventHandler) createRoom(ctx context.Context, msg *websocket.Message, reply *websocket.Reply) {
	var req dto.CreateRoomRequest
	if err := decode(msg, &req); err != nil {
		reply.Error(errorMessage(err))
		return
	}

	room, err := h.lifecycle.CreateRoom(ctx, req.HostName)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("create room failed")
		reply.Error(errorMessage(err))
		return
	}
	reply.OK(dto.CreateRoomResponse{RoomCode: room.Code, RoomID: room.ID})
}

func (h *EventHandler) joinRoom(ctx context.Context, client *websocket.Client, msg *websocket.Message, reply *websocket.Reply) {
	var req dto.JoinRoomRequest
	if err := decode(msg, &req); err != nil {
		reply.Error(errorMessage(err))
		return
	}

	res, err := h.lifecycle.JoinRoom(ctx, client.ID, req.RoomCode, req.UserName)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str(log.FieldRoomCode, req.RoomCode).Msg("join rejected")
		reply.Error(errorMessage(err))
		return
	}
	reply.OK(dto.JoinRoomResponse{
		RoomID:   res.Room.ID,
		RoomCode: res.Room.Code,
		UserID:   res.User.ID,
		ChatID:   res.ChatID,
		Ticket:   res.Ticket,
	})
}

// submitContribution подтверждает ход после обработки. Последний ход ждет ответа модели
func (h *EventHandler) submitContribution(ctx context.Context, client *websocket.Client, msg *websocket.Message, reply *websocket.Reply) {
	var req dto.SubmitContributionRequest
	if err := decode(msg, &req); err != nil {
		reply.Error(errorMessage(err))
		return
	}

	h.background(ctx, func(ctx context.Context) {
		if err := h.turns.SubmitContribution(ctx, client.ID, req.RoomCode, req.UpdatedPrompt); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("contribution failed")
			reply.Error(errorMessage(err))
			return
		}
		reply.OK(nil)
	})
}

func (h *EventHandler) submitMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message, reply *websocket.Reply) {
	var req dto.SubmitMessageRequest
	if err := decode(msg, &req); err != nil {
		reply.Error(errorMessage(err))
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		reply.Error(errorMessage(validation.Wrap(err)))
		return
	}
	refs := make([]uuid.UUID, 0, len(req.ReferencedChatIDs))
	for _, raw := range req.ReferencedChatIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			reply.Error(errorMessage(validation.Wrap(err)))
			return
		}
		refs = append(refs, id)
	}

	sub, err := h.chats.Submit(ctx, client.ID, services.SubmitInput{
		RoomCode:          req.RoomCode,
		ChatID:            chatID,
		Text:              req.Text,
		Images:            req.Images,
		ReferencedChatIDs: refs,
		MentionAI:         req.MentionAI,
	})
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str(log.FieldChatID, req.ChatID).Msg("message rejected")
		reply.Error(errorMessage(err))
		return
	}
	reply.OK(map[string]uuid.UUID{"messageId": sub.Message.ID})

	if sub.NeedsResponse() {
		h.background(ctx, func(ctx context.Context) {
			h.chats.Respond(ctx, sub)
		})
	}
}

func (h *EventHandler) requestChatMessages(ctx context.Context, client *websocket.Client, msg *websocket.Message, reply *websocket.Reply) {
	var req dto.RequestChatMessagesRequest
	if err := decode(msg, &req); err != nil {
		reply.Error(errorMessage(err))
		return
	}
	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		reply.Error(errorMessage(validation.Wrap(err)))
		return
	}

	entries, err := h.chats.Messages(ctx, client.ID, req.RoomCode, chatID)
	if err != nil {
		reply.Error(errorMessage(err))
		return
	}
	reply.OK(entries)
}

// background запускает долгую работу вне цикла чтения соединения
func (h *EventHandler) background(ctx context.Context, fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (h *EventHandler) clientContext(ctx context.Context, client *websocket.Client, event websocket.MessageType) context.Context {
	logger := log.L().With().
		Str(log.FieldConnectionID, client.ID.String()).
		Str(log.FieldEvent, string(event)).
		Logger()
	return log.WithLogger(ctx, logger)
}

func decode(msg *websocket.Message, dst any) error {
	if len(msg.Data) == 0 {
		return validation.Struct(dst)
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return validation.Wrap(fmt.Errorf("malformed payload: %w", err))
	}
	return validation.Struct(dst)
}
