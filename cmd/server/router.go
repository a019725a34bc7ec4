package main

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/teamchat/internal/handlers"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/pkg/auth"
	"github.com/thereayou/teamchat/pkg/log"
)

func APIEndpoints(r *gin.Engine, tickets *auth.TicketManager, roomH *handlers.RoomHandler, wsH *handlers.WebSocketHandler) {
	r.Use(log.GinMiddleware(), middleware.Recover())

	r.GET("/healthz", handlers.Health)
	r.GET("/ws", wsH.HandleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/rooms", roomH.CreateRoom)
		api.GET("/rooms/:code", roomH.GetRoom)

		member := api.Group("/rooms/:code", middleware.TicketMiddleware(tickets))
		{
			member.GET("/chats/:chatId/messages", roomH.GetChatMessages)
		}
	}
}
