package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"gorm.io/gorm"
)

type Snapshot struct {
	Room  models.Room
	Users []models.User
	Chats []models.Chat
}

// RoomSnapshot читает комнату, участников и чаты в одной транзакции
func (d *Database) RoomSnapshot(ctx context.Context, roomID uuid.UUID) (*Snapshot, error) {
	var opts []*sql.TxOptions
	if d.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}

	snap := &Snapshot{}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&snap.Room, "id = ?", roomID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("room_id = ?", roomID).Order("created_at ASC").Find(&snap.Users).Error; err != nil {
			return err
		}
		chats, err := roomChats(tx, roomID)
		if err != nil {
			return err
		}
		snap.Chats = chats
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
