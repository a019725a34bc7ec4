package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/handlers"
	"github.com/thereayou/teamchat/internal/llm"
	"github.com/thereayou/teamchat/internal/search"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/session"
	"github.com/thereayou/teamchat/internal/validation"
	"github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/auth"
	"github.com/thereayou/teamchat/pkg/log"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	cfg        *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Hub        *websocket.Hub
	Tickets    *auth.TicketManager
	Summarizer *services.Summarizer
	Events     *handlers.EventHandler

	cache  *search.RedisCache
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{cfg: cfg, ctx: ctx, cancel: cancel}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("database connect: %w", err)
	}
	s.DB = db

	s.Tickets = auth.NewTicketManager(cfg.TicketSecret, cfg.TicketTTL)
	s.Hub = websocket.NewHub()

	client := llm.NewAnthropicClient(llm.Options{
		APIKey:    cfg.AnthropicKey,
		BaseURL:   cfg.AnthropicURL,
		Model:     cfg.ResponderModel,
		AuxModel:  cfg.AuxModel,
		MaxTokens: cfg.ResponderMaxTokens,
	})

	searcher := s.searcher(ctx)

	directory := session.NewDirectory()
	markers := session.NewMarkers()
	broadcaster := services.NewBroadcaster(db, directory, markers, s.Hub, cfg.ChatTokenLimit)
	s.Summarizer = services.NewSummarizer(db, client)
	orchestrator := services.NewOrchestrator(db, client, markers, broadcaster, s.Hub, s.Summarizer,
		services.OrchestratorOptions{Stream: cfg.StreamResponses, TokenLimit: cfg.ChatTokenLimit})
	resolver := services.NewResolver(db, client, client, searcher)

	lifecycle := services.NewLifecycle(db, directory, broadcaster, s.Hub, s.Tickets)
	turns := services.NewTurnEngine(db, directory, orchestrator, broadcaster)
	chats := services.NewChatService(db, resolver, orchestrator, s.Summarizer, broadcaster, s.Hub, cfg.ChatTokenLimit)

	s.Events = handlers.NewEventHandler(ctx, lifecycle, turns, chats)

	validation.Register()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	APIEndpoints(router, s.Tickets,
		handlers.NewRoomHandler(lifecycle, chats),
		handlers.NewWebSocketHandler(s.Hub, s.Events, cfg.ClientURL),
	)
	s.Router = router

	return s, nil
}

// searcher собирает Google с кэшем в Redis. Без REDIS_URL кэш выключен
func (s *Server) searcher(ctx context.Context) search.Searcher {
	google := search.NewGoogleClient(s.cfg.SearchAPIKey, s.cfg.SearchEngineID, s.cfg.SearchURL)
	if !s.cfg.SearchConfigured() {
		log.L().Warn().Msg("web search is not configured")
	}

	if s.cfg.RedisURL == "" {
		return search.NewCached(google, nil, s.cfg.SearchCacheTTL)
	}

	cache, err := search.NewRedisCache(ctx, s.cfg.RedisURL, "teamchat:search:")
	if err != nil {
		log.L().Warn().Err(err).Msg("redis unavailable, search cache disabled")
		return search.NewCached(google, nil, s.cfg.SearchCacheTTL)
	}
	s.cache = cache
	return search.NewCached(google, cache, s.cfg.SearchCacheTTL)
}

// Run обслуживает запросы до SIGINT/SIGTERM и корректно завершается
func (s *Server) Run() error {
	go s.Hub.Run()

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.L().Info().Int("port", s.cfg.Port).Msg("server starting")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errCh:
	case got := <-sig:
		log.L().Info().Str("signal", got.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.L().Warn().Err(err).Msg("http shutdown")
	}
	s.shutdown(ctx)
	return runErr
}

func (s *Server) shutdown(ctx context.Context) {
	s.Hub.Stop()
	s.cancel()
	s.Events.Wait()

	if err := s.Summarizer.Wait(ctx); err != nil {
		log.L().Warn().Err(err).Msg("background summaries did not finish")
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if err := s.DB.Close(); err != nil {
		log.L().Warn().Err(err).Msg("database close")
	}
	log.L().Info().Msg("server stopped")
}
