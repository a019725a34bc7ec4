package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code      string    `gorm:"size:10;uniqueIndex;not null"`
	Active    bool      `gorm:"not null;index"`
	CreatedAt time.Time

	// Связи
	Users []User `gorm:"foreignKey:RoomID"`
	Chats []Chat `gorm:"foreignKey:RoomID"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
