package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/teamchat/pkg/auth"
	"github.com/thereayou/teamchat/pkg/log"
)

const (
	UserIDKey = "userID"
	RoomIDKey = "roomID"
)

// TicketMiddleware проверяет билет участника из Authorization header
func TicketMiddleware(tickets *auth.TicketManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid ticket"})
			c.Abort()
			return
		}

		claims, err := tickets.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
			c.Abort()
			return
		}

		userID, _ := claims.UserUUID()
		roomID, _ := claims.RoomUUID()

		c.Set(UserIDKey, userID)
		c.Set(RoomIDKey, roomID)
		c.Set(log.FieldUserID, userID.String())
		c.Next()
	}
}
