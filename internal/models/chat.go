package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/config"
	"gorm.io/gorm"
)

type ChatType string

const (
	ChatGroup      ChatType = "group"
	ChatIndividual ChatType = "individual"
)

type Chat struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name         string     `gorm:"size:100;not null"`
	Type         ChatType   `gorm:"size:16;not null"`
	OwnerID      *uuid.UUID `gorm:"type:uuid;index"`
	MessageCount int        `gorm:"not null;default:0"`
	TokenCount   int64      `gorm:"not null;default:0"`
	Summary      *string
	CreatedAt    time.Time
}

func (c *Chat) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Chat) OwnedBy(userID uuid.UUID) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// Locked true, если в чат больше нельзя писать
func (c *Chat) Locked(tokenLimit int64) bool {
	return c.MessageCount >= config.MaxChatMessages || (tokenLimit > 0 && c.TokenCount >= tokenLimit)
}
