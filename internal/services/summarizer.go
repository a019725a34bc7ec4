package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/pkg/log"
)

// Summarizer один раз пишет сводку чата, когда счетчик сообщений переходит порог
type Summarizer struct {
	store Store
	cls   classifier
	wg    sync.WaitGroup
}

func NewSummarizer(store Store, aux Auxiliary) *Summarizer {
	return &Summarizer{store: store, cls: classifier{aux: aux}}
}

// Crossed true, если инкремент before -> after прошел порог сводки
func Crossed(before, after int) bool {
	return before < config.SummaryThreshold && after >= config.SummaryThreshold
}

// Maybe запускает сводку в фоне при переходе порога. Не блокирует вызывающего
func (s *Summarizer) Maybe(ctx context.Context, chatID uuid.UUID, before, after int) bool {
	if !Crossed(before, after) {
		return false
	}

	bg := log.WithLogger(context.WithoutCancel(ctx), *log.Ctx(ctx))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, config.RequestTimeout)
		defer cancel()
		if err := s.Run(ctx, chatID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldChatID, chatID.String()).Msg("chat summary failed")
		}
	}()
	return true
}

// Run строит сводку по первым сообщениям чата и сохраняет ее, если сводки еще нет
func (s *Summarizer) Run(ctx context.Context, chatID uuid.UUID) error {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Summary != nil {
		return nil
	}

	msgs, err := s.store.FirstMessages(ctx, chatID, config.SummaryWindow)
	if err != nil {
		return err
	}

	summary, ok := s.cls.summarize(ctx, msgs)
	if !ok {
		return nil
	}

	written, err := s.store.SetSummaryOnce(ctx, chatID, summary)
	if err != nil {
		return err
	}
	if written {
		log.Ctx(ctx).Info().Str(log.FieldChatID, chatID.String()).Msg("chat summary stored")
	}
	return nil
}

// Wait ждет завершения фоновых сводок или отмены ctx
func (s *Summarizer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
