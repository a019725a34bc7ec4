package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var ErrInvalidTicket = errors.New("invalid ticket")

// TicketClaims билет участника комнаты. Subject это ID участника
type TicketClaims struct {
	RoomID string `json:"room"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

func (c *TicketClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func (c *TicketClaims) RoomUUID() (uuid.UUID, error) {
	return uuid.Parse(c.RoomID)
}

type TicketManager struct {
	secretKey     string
	tokenDuration time.Duration
}

func NewTicketManager(secret string, duration time.Duration) *TicketManager {
	return &TicketManager{secretKey: secret, tokenDuration: duration}
}

// Issue создаёт билет участника комнаты
func (m *TicketManager) Issue(roomID, userID uuid.UUID, name string) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		RoomID: roomID.String(),
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Verify парсит и проверяет билет
func (m *TicketManager) Verify(ticket string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidTicket
	}
	if _, err := claims.UserUUID(); err != nil {
		return nil, ErrInvalidTicket
	}
	if _, err := claims.RoomUUID(); err != nil {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}

// ExtractTokenFromHeader извлекает токен из Authorization header
func ExtractTokenFromHeader(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header")
	}
	return parts[1], nil
}
