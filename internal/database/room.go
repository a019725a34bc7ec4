package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/models"
	"gorm.io/gorm"
)

var ErrCodeTaken = errors.New("room code already taken")

// CreateRoomWithHost создает комнату, хоста (offline), общий чат и личный чат хоста одной транзакцией
func (d *Database) CreateRoomWithHost(ctx context.Context, code, hostName string) (*models.Room, *models.User, error) {
	room := &models.Room{Code: code, Active: true}
	host := &models.User{Name: hostName, IsHost: true, LastSeenAt: time.Now()}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Room{}).Where("code = ?", code).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrCodeTaken
		}

		if err := tx.Create(room).Error; err != nil {
			return err
		}

		host.RoomID = room.ID
		if err := tx.Create(host).Error; err != nil {
			return err
		}

		group := &models.Chat{RoomID: room.ID, Name: config.GroupChatName, Type: models.ChatGroup}
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		own := &models.Chat{RoomID: room.ID, Name: config.IndividualChatName(hostName), Type: models.ChatIndividual, OwnerID: &host.ID}
		return tx.Create(own).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return room, host, nil
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (d *Database) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).Where("code = ?", code).First(&room).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// CloseRoom помечает комнату неактивной и отвязывает всех участников
func (d *Database) CloseRoom(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Room{}).Where("id = ?", id).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("room_id = ?", id).
			Updates(map[string]any{"online": false, "connection_id": nil}).Error
	})
}

// DeleteAll удаляет все данные в порядке внешних ключей
func (d *Database) DeleteAll(ctx context.Context) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Message{}, &models.Chat{}, &models.User{}, &models.Room{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
