package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User участник комнаты. Переживает переподключения, меняются только Online и ConnectionID
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name         string     `gorm:"size:50;not null"`
	IsHost       bool       `gorm:"not null"`
	Online       bool       `gorm:"not null"`
	ConnectionID *uuid.UUID `gorm:"type:uuid;index"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
