package dto

import "github.com/google/uuid"

type CreateRoomRequest struct {
	HostName string `json:"hostName" binding:"required,max=50,displayname"`
}

type CreateRoomResponse struct {
	RoomCode string    `json:"roomCode"`
	RoomID   uuid.UUID `json:"roomId"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode" binding:"required,max=10,roomcode"`
	UserName string `json:"userName" binding:"required,max=50,displayname"`
}

// JoinRoomResponse данные подтверждения входа в комнату
type JoinRoomResponse struct {
	RoomID   uuid.UUID `json:"roomId"`
	RoomCode string    `json:"roomCode"`
	UserID   uuid.UUID `json:"userId"`
	ChatID   uuid.UUID `json:"chatId"`
	Ticket   string    `json:"ticket,omitempty"`
}

type RoomInfoResponse struct {
	Code        string `json:"code"`
	Active      bool   `json:"active"`
	OnlineCount int    `json:"onlineCount"`
}
