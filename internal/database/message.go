package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"gorm.io/gorm"
)

var (
	ErrChatFull   = errors.New("chat message limit reached")
	ErrRoomClosed = errors.New("room is closed")
)

// AppendMessage сохраняет сообщение и увеличивает счетчик чата.
// limit > 0 ограничивает счетчик: при достижении сообщение не вставляется.
// В чат закрытой комнаты сообщение не вставляется.
// Возвращает значение счетчика до и после вставки.
func (d *Database) AppendMessage(ctx context.Context, msg *models.Message, limit int) (before, after int, err error) {
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active := tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.Room{}).
			Select("id").
			Where("active = ?", true)
		q := tx.Model(&models.Chat{}).
			Where("id = ?", msg.ChatID).
			Where("room_id IN (?)", active)
		if limit > 0 {
			q = q.Where("message_count < ?", limit)
		}
		res := q.UpdateColumn("message_count", gorm.Expr("message_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appendRejection(tx, msg.ChatID)
		}

		var chat models.Chat
		if err := tx.Select("message_count").First(&chat, "id = ?", msg.ChatID).Error; err != nil {
			return err
		}
		after = chat.MessageCount
		before = after - 1

		msg.Position = after
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return nil
	})
	return before, after, err
}

// appendRejection объясняет, почему счетчик не увеличился
func appendRejection(tx *gorm.DB, chatID uuid.UUID) error {
	var chat models.Chat
	if err := tx.Select("id", "room_id").First(&chat, "id = ?", chatID).Error; err != nil {
		return notFound(err)
	}
	var room models.Room
	if err := tx.Select("active").First(&room, "id = ?", chat.RoomID).Error; err != nil {
		return notFound(err)
	}
	if !room.Active {
		return ErrRoomClosed
	}
	return ErrChatFull
}

// GetChatMessages возвращает историю чата в порядке создания
func (d *Database) GetChatMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("position ASC, created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (d *Database) FirstMessages(ctx context.Context, chatID uuid.UUID, n int) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("position ASC, created_at ASC").
		Limit(n).
		Find(&messages).Error
	return messages, err
}

// RecentMessages возвращает последние n сообщений, старые первыми
func (d *Database) RecentMessages(ctx context.Context, chatID uuid.UUID, n int) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("position DESC, created_at DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
