package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/session"
	"github.com/thereayou/teamchat/pkg/log"
)

// TurnEngine режим общего промпта: участники по очереди дописывают текст
type TurnEngine struct {
	store        Store
	directory    *session.Directory
	orchestrator *Orchestrator
	broadcaster  *Broadcaster
}

func NewTurnEngine(store Store, directory *session.Directory, orchestrator *Orchestrator, broadcaster *Broadcaster) *TurnEngine {
	return &TurnEngine{
		store:        store,
		directory:    directory,
		orchestrator: orchestrator,
		broadcaster:  broadcaster,
	}
}

// SubmitContribution принимает ход. Ход не в очередь молча отбрасывается.
// На последнем ходе промпт уходит модели, и вызов ждет ее ответа.
func (t *TurnEngine) SubmitContribution(ctx context.Context, connID uuid.UUID, roomCode, text string) error {
	room, err := t.store.GetRoomByCode(ctx, normalizeCode(roomCode))
	if errors.Is(err, database.ErrNotFound) || (err == nil && !room.Active) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}

	s, ok := t.directory.Get(room.ID)
	if !ok {
		return ErrRoomNotFound
	}

	user, err := t.store.FindUserByConnection(ctx, room.ID, connID)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str(log.FieldConnectionID, connID.String()).Msg("contribution from unbound connection dropped")
		return nil
	}

	out := s.Submit(user.ID, text)
	if !out.Accepted {
		return nil
	}
	if !out.Final {
		t.broadcaster.Broadcast(ctx, room.ID)
		return nil
	}

	s.AppendLog(models.PromptEntry{ID: uuid.New(), Text: out.Prompt, CreatedAt: time.Now()})
	t.broadcaster.Broadcast(ctx, room.ID)

	t.orchestrator.RespondLegacy(ctx, s, out.Prompt)

	s.CompleteRound()
	t.broadcaster.Broadcast(ctx, room.ID)
	return nil
}
