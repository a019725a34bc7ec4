package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"gorm.io/gorm"
)

func (d *Database) GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	if err := d.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// GetRoomChats возвращает чаты комнаты: сначала общий, затем личные по времени создания
func (d *Database) GetRoomChats(ctx context.Context, roomID uuid.UUID) ([]models.Chat, error) {
	return roomChats(d.db.WithContext(ctx), roomID)
}

func roomChats(db *gorm.DB, roomID uuid.UUID) ([]models.Chat, error) {
	var chats []models.Chat
	err := db.
		Where("room_id = ?", roomID).
		Order("CASE WHEN type = 'group' THEN 0 ELSE 1 END").
		Order("created_at ASC").
		Find(&chats).Error
	return chats, err
}

func (d *Database) GetIndividualChat(ctx context.Context, userID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	err := d.db.WithContext(ctx).
		Where("owner_id = ? AND type = ?", userID, models.ChatIndividual).
		First(&chat).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// AddTokens атомарно увеличивает счетчик токенов чата
func (d *Database) AddTokens(ctx context.Context, chatID uuid.UUID, n int64) error {
	return d.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		UpdateColumn("token_count", gorm.Expr("token_count + ?", n)).Error
}

// SetSummaryOnce пишет сводку, только если ее еще нет
func (d *Database) SetSummaryOnce(ctx context.Context, chatID uuid.UUID, summary string) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ? AND summary IS NULL", chatID).
		UpdateColumn("summary", summary)
	return res.RowsAffected > 0, res.Error
}
