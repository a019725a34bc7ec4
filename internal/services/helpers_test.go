package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/database/dbtest"
	"github.com/thereayou/teamchat/internal/llm"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/search"
	"github.com/thereayou/teamchat/internal/session"
)

type emitted struct {
	RoomID  uuid.UUID
	ConnID  uuid.UUID
	Event   string
	Payload any
}

// recordingEmitter запоминает все события вместо отправки в сокеты
type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
	joins  map[uuid.UUID]uuid.UUID
	closed []uuid.UUID
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{joins: make(map[uuid.UUID]uuid.UUID)}
}

func (e *recordingEmitter) EmitToRoom(roomID uuid.UUID, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{RoomID: roomID, Event: event, Payload: payload})
}

func (e *recordingEmitter) EmitToConnection(connID uuid.UUID, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{ConnID: connID, Event: event, Payload: payload})
}

func (e *recordingEmitter) JoinRoom(connID, roomID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joins[connID] = roomID
}

func (e *recordingEmitter) CloseRoom(roomID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = append(e.closed, roomID)
}

func (e *recordingEmitter) byEvent(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) lastState(t *testing.T) *GameState {
	t.Helper()
	states := e.byEvent(EventGameState)
	require.NotEmpty(t, states)
	st, ok := states[len(states)-1].Payload.(*GameState)
	require.True(t, ok)
	return st
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// fakeResponder отвечает фиксированным текстом. Запросы решения о поиске считаются отдельно
type fakeResponder struct {
	mu        sync.Mutex
	reply     string
	deltas    []string
	err       error
	decision  string
	delay     time.Duration
	calls     int
	decisions int
	last      []llm.Message

	inflight    int
	maxInflight int
}

// enter отмечает начало вызова модели и возвращает функцию его завершения
func (f *fakeResponder) enter(messages []llm.Message) func() {
	f.mu.Lock()
	f.calls++
	f.last = messages
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)
	return func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}
}

func (f *fakeResponder) Complete(_ context.Context, messages []llm.Message) (*llm.Completion, error) {
	if len(messages) == 1 && strings.HasPrefix(messages[0].Content, "Decide whether answering") {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.decisions++
		decision := f.decision
		if decision == "" {
			decision = `{"search": false}`
		}
		return &llm.Completion{Text: decision}, nil
	}

	done := f.enter(messages)
	defer done()

	f.mu.Lock()
	reply, err := f.reply, f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &llm.Completion{Text: reply, Model: "test-model", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (f *fakeResponder) Stream(_ context.Context, messages []llm.Message, onDelta func(string)) (*llm.Completion, error) {
	done := f.enter(messages)
	defer done()

	f.mu.Lock()
	deltas, reply, err := f.deltas, f.reply, f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(deltas) == 0 {
		deltas = []string{reply}
	}
	for _, d := range deltas {
		onDelta(d)
	}
	return &llm.Completion{Text: strings.Join(deltas, ""), Model: "test-model", Usage: llm.Usage{OutputTokens: 3}}, nil
}

func (f *fakeResponder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeResponder) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func (f *fakeResponder) lastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// fakeAux отвечает по первой строке запроса. Незаданные виды запросов возвращают ошибку
type fakeAux struct {
	mu      sync.Mutex
	answers map[string]string
	prompts []string
}

const (
	auxIntent     = "Classify the intent"
	auxRedundancy = "Decide whether the user is asking again"
	auxTopic      = "Compare the new message"
	auxReference  = "The user attached the chat"
	auxRelevance  = "Select the exchanges"
	auxSummary    = "Write a concise summary"
)

func newFakeAux() *fakeAux {
	return &fakeAux{answers: map[string]string{auxIntent: "SUBSTANTIVE"}}
}

func (f *fakeAux) set(kind, answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[kind] = answer
}

func (f *fakeAux) Ask(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	for prefix, answer := range f.answers {
		if strings.HasPrefix(prompt, prefix) {
			return answer, nil
		}
	}
	return "", errors.New("no answer configured")
}

func (f *fakeAux) asked(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.HasPrefix(p, kind) {
			n++
		}
	}
	return n
}

type fakeSearcher struct {
	mu      sync.Mutex
	result  search.Result
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) search.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.result
}

type fakeTickets struct{}

func (fakeTickets) Issue(roomID, userID uuid.UUID, _ string) (string, error) {
	return roomID.String() + "." + userID.String(), nil
}

// testEnv собранный набор сервисов поверх sqlite в памяти
type testEnv struct {
	db        *database.Database
	emitter   *recordingEmitter
	responder *fakeResponder
	aux       *fakeAux
	searcher  *fakeSearcher
	directory *session.Directory
	markers   *session.Markers

	broadcaster  *Broadcaster
	summarizer   *Summarizer
	orchestrator *Orchestrator
	resolver     *Resolver
	lifecycle    *Lifecycle
	turns        *TurnEngine
	chats        *ChatService
}

func newTestEnv(t *testing.T, opts OrchestratorOptions) *testEnv {
	t.Helper()

	env := &testEnv{
		db:        dbtest.New(t),
		emitter:   newRecordingEmitter(),
		responder: &fakeResponder{reply: "Hi there!"},
		aux:       newFakeAux(),
		searcher:  &fakeSearcher{result: search.Result{OK: true}},
		directory: session.NewDirectory(),
		markers:   session.NewMarkers(),
	}

	env.broadcaster = NewBroadcaster(env.db, env.directory, env.markers, env.emitter, opts.TokenLimit)
	env.summarizer = NewSummarizer(env.db, env.aux)
	env.orchestrator = NewOrchestrator(env.db, env.responder, env.markers, env.broadcaster, env.emitter, env.summarizer, opts)
	env.resolver = NewResolver(env.db, env.responder, env.aux, env.searcher)
	env.lifecycle = NewLifecycle(env.db, env.directory, env.broadcaster, env.emitter, fakeTickets{})
	env.turns = NewTurnEngine(env.db, env.directory, env.orchestrator, env.broadcaster)
	env.chats = NewChatService(env.db, env.resolver, env.orchestrator, env.summarizer, env.broadcaster, env.emitter, opts.TokenLimit)

	t.Cleanup(func() { _ = env.summarizer.Wait(context.Background()) })
	return env
}

// member участник комнаты вместе с его соединением
type member struct {
	conn uuid.UUID
	res  *JoinResult
}

// startRoom создает комнату и заводит в нее хоста и гостей по порядку
func (env *testEnv) startRoom(t *testing.T, host string, guests ...string) (*models.Room, []member) {
	t.Helper()
	ctx := context.Background()

	room, err := env.lifecycle.CreateRoom(ctx, host)
	require.NoError(t, err)

	var members []member
	for _, name := range append([]string{host}, guests...) {
		conn := uuid.New()
		res, err := env.lifecycle.JoinRoom(ctx, conn, room.Code, name)
		require.NoError(t, err)
		members = append(members, member{conn: conn, res: res})
	}
	return room, members
}

func (env *testEnv) groupChat(t *testing.T, roomID uuid.UUID) models.Chat {
	t.Helper()
	chats, err := env.db.GetRoomChats(context.Background(), roomID)
	require.NoError(t, err)
	for _, c := range chats {
		if c.Type == models.ChatGroup {
			return c
		}
	}
	t.Fatal("group chat not found")
	return models.Chat{}
}

func (env *testEnv) chat(t *testing.T, id uuid.UUID) *models.Chat {
	t.Helper()
	chat, err := env.db.GetChat(context.Background(), id)
	require.NoError(t, err)
	return chat
}
