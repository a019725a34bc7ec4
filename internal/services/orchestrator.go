package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/llm"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/session"
	"github.com/thereayou/teamchat/pkg/log"
)

// Orchestrator вызывает модель под маркером комнаты и сохраняет результат
type Orchestrator struct {
	store       Store
	responder   Responder
	markers     *session.Markers
	broadcaster *Broadcaster
	emitter     Emitter
	summarizer  *Summarizer
	stream      bool
	tokenLimit  int64
}

type OrchestratorOptions struct {
	Stream     bool
	TokenLimit int64
}

func NewOrchestrator(store Store, responder Responder, markers *session.Markers, broadcaster *Broadcaster,
	emitter Emitter, summarizer *Summarizer, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		store:       store,
		responder:   responder,
		markers:     markers,
		broadcaster: broadcaster,
		emitter:     emitter,
		summarizer:  summarizer,
		stream:      opts.Stream,
		tokenLimit:  opts.TokenLimit,
	}
}

// Acquire ставит маркер комнаты и сразу рассылает состояние
func (o *Orchestrator) Acquire(ctx context.Context, roomID, chatID uuid.UUID) (*session.Lease, bool) {
	lease, ok := o.markers.TryAcquire(roomID, chatID)
	if !ok {
		return nil, false
	}
	o.broadcaster.Broadcast(ctx, roomID)
	return lease, true
}

// Release снимает маркер и рассылает итоговое состояние
func (o *Orchestrator) Release(ctx context.Context, lease *session.Lease) {
	lease.Release()
	o.broadcaster.Broadcast(ctx, lease.RoomID())
}

// Respond получает ответ модели для чата и сохраняет его. Вызывается под маркером
func (o *Orchestrator) Respond(ctx context.Context, roomID, chatID uuid.UUID, messages []llm.Message) error {
	logger := log.Ctx(ctx).With().Str(log.FieldRoomID, roomID.String()).Str(log.FieldChatID, chatID.String()).Logger()

	chat, err := o.store.GetChat(ctx, chatID)
	if err != nil {
		logger.Error().Err(err).Msg("chat lookup before response failed")
		o.emitError(roomID, chatID, aiFailedMessage)
		return err
	}
	if limitErr := o.limitError(chat); limitErr != nil {
		o.emitError(roomID, chatID, limitErr.Error())
		return limitErr
	}

	var completion *llm.Completion
	if o.stream {
		completion, err = o.streamToRoom(ctx, roomID, &chatID, messages)
	} else {
		completion, err = o.responder.Complete(ctx, messages)
	}
	if err != nil {
		logger.Error().Err(err).Msg("responder call failed")
		o.emitError(roomID, chatID, aiFailedMessage)
		return err
	}

	input := estimateInputTokens(messages)
	output := completion.Usage.OutputTokens
	if output <= 0 {
		output = estimateTokens(completion.Text)
	}
	if err := o.store.AddTokens(ctx, chatID, int64(input+output)); err != nil {
		logger.Error().Err(err).Msg("token accounting failed")
	}

	msg := &models.Message{
		ChatID:       chatID,
		SenderName:   config.AssistantName,
		Content:      completion.Text,
		Role:         models.RoleAssistant,
		InputTokens:  &input,
		OutputTokens: &output,
	}
	if completion.Model != "" {
		model := completion.Model
		msg.Model = &model
	}
	if err := o.persist(ctx, roomID, msg); err != nil {
		logger.Error().Err(err).Msg("failed to store assistant message")
		o.emitError(roomID, chatID, aiFailedMessage)
		return err
	}
	return nil
}

// DeliverCanned сохраняет готовую реплику без вызова модели
func (o *Orchestrator) DeliverCanned(ctx context.Context, roomID, chatID uuid.UUID, text string) error {
	msg := &models.Message{ChatID: chatID, SenderName: config.AssistantName, Content: text, Role: models.RoleAssistant}
	if err := o.persist(ctx, roomID, msg); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldChatID, chatID.String()).Msg("failed to store canned reply")
		return err
	}
	return nil
}

// RespondLegacy отвечает на собранный общий промпт и пишет результат в лог сессии
func (o *Orchestrator) RespondLegacy(ctx context.Context, s *session.Session, prompt string) {
	lease, ok := o.Acquire(ctx, s.RoomID, uuid.Nil)
	if !ok {
		s.AppendLog(models.SystemEntry{ID: uuid.New(), Text: aiBusyMessage, CreatedAt: time.Now()})
		return
	}
	defer lease.Release()

	completion, err := o.streamToRoom(ctx, s.RoomID, nil, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, s.RoomID.String()).Msg("AI Error")
		s.AppendLog(models.SystemEntry{ID: uuid.New(), Text: aiFailedMessage, CreatedAt: time.Now()})
		return
	}

	out := completion.Usage.OutputTokens
	in := completion.Usage.InputTokens
	s.AppendLog(models.AssistantEntry{
		ID:           uuid.New(),
		Text:         completion.Text,
		Model:        completion.Model,
		InputTokens:  in,
		OutputTokens: out,
		CreatedAt:    time.Now(),
	})
}

// streamToRoom транслирует части ответа всем в комнате. ai_stream_end уходит всегда
func (o *Orchestrator) streamToRoom(ctx context.Context, roomID uuid.UUID, chatID *uuid.UUID, messages []llm.Message) (*llm.Completion, error) {
	streamID := uuid.New()
	o.emitter.EmitToRoom(roomID, EventStreamStart, StreamEvent{MessageID: streamID, ChatID: chatID, Sender: streamSenderClaude})
	defer o.emitter.EmitToRoom(roomID, EventStreamEnd, StreamEvent{MessageID: streamID, ChatID: chatID})

	return o.responder.Stream(ctx, messages, func(delta string) {
		o.emitter.EmitToRoom(roomID, EventStreamChunk, StreamEvent{MessageID: streamID, ChatID: chatID, Text: delta})
	})
}

func (o *Orchestrator) persist(ctx context.Context, roomID uuid.UUID, msg *models.Message) error {
	before, after, err := o.store.AppendMessage(ctx, msg, 0)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if o.summarizer != nil {
		o.summarizer.Maybe(ctx, msg.ChatID, before, after)
	}
	o.emitter.EmitToRoom(roomID, EventNewMessage, NewMessageEvent{ChatID: msg.ChatID, Message: msg.Entry()})
	return nil
}

// limitError перепроверяет лимит токенов перед вызовом. Лимит сообщений проверяется при отправке
func (o *Orchestrator) limitError(chat *models.Chat) error {
	if o.tokenLimit > 0 && chat.TokenCount >= o.tokenLimit {
		return ErrChatTokenLimit
	}
	return nil
}

func (o *Orchestrator) emitError(roomID, chatID uuid.UUID, msg string) {
	o.emitter.EmitToRoom(roomID, EventAIError, AIErrorEvent{ChatID: &chatID, Message: msg})
}

func chatLimitError(chat *models.Chat, tokenLimit int64) error {
	if chat.MessageCount >= config.MaxChatMessages {
		return ErrChatMessageLimit
	}
	if tokenLimit > 0 && chat.TokenCount >= tokenLimit {
		return ErrChatTokenLimit
	}
	return nil
}

// estimateInputTokens около одного токена на 4 символа сериализованного контекста
func estimateInputTokens(messages []llm.Message) int {
	raw, err := json.Marshal(messages)
	if err != nil {
		return 0
	}
	return len(raw) / 4
}

func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
