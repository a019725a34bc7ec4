package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RolePrompt    Role = "prompt"
	RoleSystem    Role = "system"
)

type Message struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ChatID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_chat_created,priority:1;index:idx_chat_position,priority:1"`
	SenderID     *uuid.UUID `gorm:"type:uuid"`
	SenderName   string     `gorm:"size:50"`
	Content      string     `gorm:"not null"`
	Role         Role       `gorm:"size:16;not null"`
	Images       datatypes.JSON
	InputTokens  *int
	OutputTokens *int
	Model        *string   `gorm:"size:100"`
	Position     int       `gorm:"not null;default:0;index:idx_chat_position,priority:2"`
	CreatedAt    time.Time `gorm:"index:idx_chat_created,priority:2"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// SetImages сохраняет вложения как JSON-массив
func (m *Message) SetImages(images []string) {
	if len(images) == 0 {
		m.Images = nil
		return
	}
	raw, _ := json.Marshal(images)
	m.Images = datatypes.JSON(raw)
}

func (m *Message) ImageList() []string {
	if len(m.Images) == 0 {
		return nil
	}
	var images []string
	if err := json.Unmarshal(m.Images, &images); err != nil {
		return nil
	}
	return images
}
