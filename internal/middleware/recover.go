package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/teamchat/pkg/log"
)

// Recover перехватывает панику обработчика и отвечает 500
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Ctx(c.Request.Context()).Error().Interface("panic", r).Msg("handler panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
