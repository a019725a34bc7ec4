package services

import (
	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

const (
	EventGameState   = "update_game_state"
	EventNewMessage  = "new_message"
	EventStreamStart = "ai_stream_start"
	EventStreamChunk = "ai_stream_chunk"
	EventStreamEnd   = "ai_stream_end"
	EventRoomClosed  = "room_closed"
	EventAIError     = "ai_error"
)

const (
	hostLeftMessage    = "The host has left the session. This room is now closed."
	aiFailedMessage    = "Error connecting to AI."
	aiBusyMessage      = "Claude is still responding to another message in this room. Please wait a moment."
	streamSenderClaude = "claude"
)

type NewMessageEvent struct {
	ChatID  uuid.UUID    `json:"chatId"`
	Message models.Entry `json:"message"`
}

// StreamEvent события потоковой генерации. ChatID пуст в режиме общего промпта
type StreamEvent struct {
	MessageID uuid.UUID  `json:"messageId"`
	ChatID    *uuid.UUID `json:"chatId"`
	Sender    string     `json:"sender,omitempty"`
	Text      string     `json:"text,omitempty"`
}

type AIErrorEvent struct {
	ChatID  *uuid.UUID `json:"chatId,omitempty"`
	Message string     `json:"message"`
}

type RoomClosedEvent struct {
	Message string `json:"message"`
}
