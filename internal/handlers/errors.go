package handlers

import (
	"errors"
	"net/http"

	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/validation"
)

// errorMessage текст ошибки для клиента
func errorMessage(err error) string {
	if errors.Is(err, validation.ErrInvalidInput) {
		return validation.Message(err)
	}
	return services.PublicMessage(err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidInput), errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRoomNotFound), errors.Is(err, services.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrChatForbidden), errors.Is(err, services.ErrNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNameTaken), errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrChatMessageLimit), errors.Is(err, services.ErrChatTokenLimit):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
