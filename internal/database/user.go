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

var ErrRoomFull = errors.New("room is full")

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (d *Database) GetRoomUsers(ctx context.Context, roomID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

// FindUserByName ищет участника комнаты по имени без учета регистра
func (d *Database) FindUserByName(ctx context.Context, roomID uuid.UUID, name string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND LOWER(name) = LOWER(?)", roomID, name).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (d *Database) FindUserByConnection(ctx context.Context, roomID, connID uuid.UUID) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND connection_id = ? AND online = ?", roomID, connID, true).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (d *Database) CountOnlineUsers(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int64
	err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("room_id = ? AND online = ?", roomID, true).
		Count(&n).Error
	return int(n), err
}

// CreateUserWithChat создает нового участника (сразу online) вместе с его личным чатом.
// Имя и лимит онлайна перепроверяются внутри транзакции.
func (d *Database) CreateUserWithChat(ctx context.Context, roomID uuid.UUID, name string, connID uuid.UUID) (*models.User, *models.Chat, error) {
	user := &models.User{RoomID: roomID, Name: name, Online: true, ConnectionID: &connID, LastSeenAt: time.Now()}
	chat := &models.Chat{RoomID: roomID, Name: config.IndividualChatName(name), Type: models.ChatIndividual}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var same int64
		if err := tx.Model(&models.User{}).
			Where("room_id = ? AND LOWER(name) = LOWER(?)", roomID, name).
			Count(&same).Error; err != nil {
			return err
		}
		if same > 0 {
			return ErrNameTaken
		}

		var online int64
		if err := tx.Model(&models.User{}).
			Where("room_id = ? AND online = ?", roomID, true).
			Count(&online).Error; err != nil {
			return err
		}
		if online >= config.MaxOnlineUsers {
			return ErrRoomFull
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}
		chat.OwnerID = &user.ID
		return tx.Create(chat).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return user, chat, nil
}

// BindUser помечает участника online под данным соединением
func (d *Database) BindUser(ctx context.Context, userID, connID uuid.UUID) error {
	return d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"online": true, "connection_id": connID, "last_seen_at": time.Now()}).Error
}

// MarkConnectionOffline отвязывает всех участников соединения и возвращает затронутые комнаты
func (d *Database) MarkConnectionOffline(ctx context.Context, connID uuid.UUID) ([]uuid.UUID, error) {
	var roomIDs []uuid.UUID

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("connection_id = ?", connID).
			Distinct().
			Pluck("room_id", &roomIDs).Error; err != nil {
			return err
		}
		if len(roomIDs) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).
			Where("connection_id = ?", connID).
			Updates(map[string]any{"online": false, "connection_id": nil, "last_seen_at": time.Now()}).Error
	})

	return roomIDs, err
}
