package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/validation"
	"github.com/thereayou/teamchat/pkg/log"
)

type RoomHandler struct {
	lifecycle *services.Lifecycle
	chats     *services.ChatService
}

func NewRoomHandler(lifecycle *services.Lifecycle, chats *services.ChatService) *RoomHandler {
	return &RoomHandler{lifecycle: lifecycle, chats: chats}
}

// CreateRoom создает комнату. Хост входит в нее отдельно через join_room
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		err = validation.Wrap(err)
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}

	room, err := h.lifecycle.CreateRoom(c.Request.Context(), req.HostName)
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("create room failed")
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, dto.CreateRoomResponse{RoomCode: room.Code, RoomID: room.ID})
}

// GetRoom краткая информация о комнате по коду
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, online, err := h.lifecycle.RoomInfo(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, dto.RoomInfoResponse{
		Code:        room.Code,
		Active:      room.Active,
		OnlineCount: online,
	})
}

// GetChatMessages история чата для владельца билета
func (h *RoomHandler) GetChatMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID := c.MustGet(middleware.RoomIDKey).(uuid.UUID)

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	room, _, err := h.lifecycle.RoomInfo(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}
	if room.ID != roomID {
		c.JSON(http.StatusForbidden, gin.H{"error": errorMessage(services.ErrNotInRoom)})
		return
	}

	entries, err := h.chats.History(c.Request.Context(), roomID, userID, chatID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chatId": chatID, "messages": entries})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
