package services

import (
	"errors"
)

// Ошибки, текст которых показывается пользователю
var (
	ErrRoomNotFound     = errors.New("Room not found or is closed.")
	ErrNameTaken        = errors.New("Name is already taken in this room.")
	ErrRoomFull         = errors.New("Room is full.")
	ErrChatMessageLimit = errors.New("This chat has reached its message limit.")
	ErrChatTokenLimit   = errors.New("This chat has reached its token limit.")
	ErrChatForbidden    = errors.New("You cannot post in this chat.")
	ErrChatNotFound     = errors.New("Chat not found.")
	ErrNotInRoom        = errors.New("You are not in this room.")
	ErrEmptyMessage     = errors.New("Message must contain text or an image.")
)

const internalMessage = "Something went wrong. Please try again."

var public = []error{
	ErrRoomNotFound, ErrNameTaken, ErrRoomFull, ErrChatMessageLimit,
	ErrChatTokenLimit, ErrChatForbidden, ErrChatNotFound, ErrNotInRoom,
	ErrEmptyMessage,
}

// PublicMessage возвращает текст ошибки для клиента, скрывая внутренние детали
func PublicMessage(err error) string {
	for _, p := range public {
		if errors.Is(err, p) {
			return p.Error()
		}
	}
	return internalMessage
}
