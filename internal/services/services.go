package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/llm"
	"github.com/thereayou/teamchat/internal/models"
)

// Store постоянное хранилище комнат, участников, чатов и сообщений
type Store interface {
	CreateRoomWithHost(ctx context.Context, code, hostName string) (*models.Room, *models.User, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	CloseRoom(ctx context.Context, id uuid.UUID) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetRoomUsers(ctx context.Context, roomID uuid.UUID) ([]models.User, error)
	FindUserByName(ctx context.Context, roomID uuid.UUID, name string) (*models.User, error)
	FindUserByConnection(ctx context.Context, roomID, connID uuid.UUID) (*models.User, error)
	CountOnlineUsers(ctx context.Context, roomID uuid.UUID) (int, error)
	CreateUserWithChat(ctx context.Context, roomID uuid.UUID, name string, connID uuid.UUID) (*models.User, *models.Chat, error)
	BindUser(ctx context.Context, userID, connID uuid.UUID) error
	MarkConnectionOffline(ctx context.Context, connID uuid.UUID) ([]uuid.UUID, error)

	GetChat(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	GetRoomChats(ctx context.Context, roomID uuid.UUID) ([]models.Chat, error)
	GetIndividualChat(ctx context.Context, userID uuid.UUID) (*models.Chat, error)
	AddTokens(ctx context.Context, chatID uuid.UUID, n int64) error
	SetSummaryOnce(ctx context.Context, chatID uuid.UUID, summary string) (bool, error)

	AppendMessage(ctx context.Context, msg *models.Message, limit int) (before, after int, err error)
	GetChatMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
	FirstMessages(ctx context.Context, chatID uuid.UUID, n int) ([]models.Message, error)
	RecentMessages(ctx context.Context, chatID uuid.UUID, n int) ([]models.Message, error)

	RoomSnapshot(ctx context.Context, roomID uuid.UUID) (*database.Snapshot, error)
}

// Responder основная модель
type Responder interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error)
	Stream(ctx context.Context, messages []llm.Message, onDelta func(string)) (*llm.Completion, error)
}

// Auxiliary вспомогательная модель для классификации и сводок
type Auxiliary interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Emitter доставка событий подключенным клиентам
type Emitter interface {
	EmitToRoom(roomID uuid.UUID, event string, payload any)
	EmitToConnection(connID uuid.UUID, event string, payload any)
	JoinRoom(connID, roomID uuid.UUID)
	CloseRoom(roomID uuid.UUID)
}

// TicketIssuer выдает билет участника для HTTP API
type TicketIssuer interface {
	Issue(roomID, userID uuid.UUID, name string) (string, error)
}
