package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/llm"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/search"
	"github.com/thereayou/teamchat/pkg/log"
)

var (
	mentionPattern       = regexp.MustCompile(`@([^@\n]{1,60}?Chat)\b`)
	explicitSearchRegexp = regexp.MustCompile(`(?i)\b(links?|sources?|urls?|citations?|websites?)\b`)
)

const maxSearchQueryLen = 200

// Plan что отправить в ответ: готовую реплику или собранный контекст для модели
type Plan struct {
	Canned   string
	Messages []llm.Message
}

// Resolver разбирает ссылки на чаты и собирает контекст ответа
type Resolver struct {
	store     Store
	responder Responder
	searcher  search.Searcher
	cls       classifier
}

func NewResolver(store Store, responder Responder, aux Auxiliary, searcher search.Searcher) *Resolver {
	return &Resolver{store: store, responder: responder, searcher: searcher, cls: classifier{aux: aux}}
}

// Plan решает, как ответить на только что сохраненное сообщение.
// Ошибки отдельных шагов логируются и не прерывают сборку.
func (r *Resolver) Plan(ctx context.Context, sub *Submission) Plan {
	text := sub.Input.Text
	logger := log.Ctx(ctx).With().
		Str(log.FieldRoomID, sub.Room.ID.String()).
		Str(log.FieldChatID, sub.Chat.ID.String()).
		Logger()
	ctx = log.WithLogger(ctx, logger)

	chat := sub.Chat
	if fresh, err := r.store.GetChat(ctx, sub.Chat.ID); err == nil {
		chat = *fresh
	}

	roomChats, err := r.store.GetRoomChats(ctx, sub.Room.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("room chats lookup failed")
	}

	augmented, inline := r.resolveInline(ctx, text, roomChats)
	pills := r.resolvePills(ctx, text, sub, roomChats)
	history := r.history(ctx, &chat, sub.Message.ID)

	switch r.cls.intent(ctx, text) {
	case IntentAcknowledgment:
		return Plan{Canned: cannedAcknowledgment}
	case IntentGreeting:
		return Plan{Canned: cannedGreeting}
	}
	if inline == 0 && r.cls.redundant(ctx, text, lastAssistantReplies(history, config.RedundancyWindow)) {
		return Plan{Canned: cannedRedundant}
	}

	topic := ""
	if recent := r.recent(ctx, chat.ID, sub.Message.ID); len(recent) > 0 {
		topic = topicContinuesInstruction
		if changed, ok := r.cls.topicChanged(ctx, text, recent); ok && changed {
			topic = topicChangedInstruction
		}
	}

	searchCtx := ""
	if inline == 0 {
		searchCtx = r.searchContext(ctx, text)
	}

	group := chat.Type == models.ChatGroup
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: memoryInstruction}}
	if chat.Summary != nil {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: summaryContext(*chat.Summary)})
	}
	for _, p := range pills {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: p})
	}
	for _, m := range history {
		if lm, ok := toLLM(m, group); ok {
			msgs = append(msgs, lm)
		}
	}

	current := augmented
	if group {
		current = sub.User.Name + ": " + augmented
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: current, Images: sub.Input.Images})

	if searchCtx != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: searchCtx})
	}
	if topic != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: topic})
	}

	return Plan{Messages: msgs}
}

// resolveInline заменяет упоминания @... Chat блоками контекста
func (r *Resolver) resolveInline(ctx context.Context, text string, chats []models.Chat) (string, int) {
	matches := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}

	blocks := make(map[uuid.UUID]string)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		last = m[1]

		mention := text[m[2]:m[3]]
		chat, prefix := resolveMention(mention, chats)
		b.WriteString(prefix)
		if chat == nil {
			b.WriteString(noMessagesBlock(mention))
			continue
		}

		block, ok := blocks[chat.ID]
		if !ok {
			block = r.chatContext(ctx, text, chat)
			blocks[chat.ID] = block
		}
		b.WriteString(block)
	}
	b.WriteString(text[last:])

	return b.String(), len(matches)
}

// resolveMention ищет чат по упоминанию: точное совпадение без учета регистра,
// затем совпадение по подстроке. prefix это текст упоминания перед именем чата
func resolveMention(mention string, chats []models.Chat) (*models.Chat, string) {
	lower := strings.ToLower(mention)
	trimmed := strings.TrimSpace(lower)
	for i := range chats {
		if strings.ToLower(chats[i].Name) == trimmed {
			return &chats[i], ""
		}
	}

	var (
		best    *models.Chat
		bestAt  = -1
		bestLen = 0
	)
	for i := range chats {
		name := strings.ToLower(chats[i].Name)
		if at := strings.LastIndex(lower, name); at >= 0 && len(name) > bestLen {
			best, bestAt, bestLen = &chats[i], at, len(name)
		}
	}
	if best == nil {
		for i := range chats {
			if strings.Contains(strings.ToLower(chats[i].Name), trimmed) {
				return &chats[i], ""
			}
		}
		return nil, ""
	}

	prefix := ""
	if bestAt > 0 && len(lower) == len(mention) {
		prefix = mention[:bestAt]
	}
	return best, prefix
}

func (r *Resolver) chatContext(ctx context.Context, cues string, chat *models.Chat) string {
	msgs, err := r.store.GetChatMessages(ctx, chat.ID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("ref_chat_id", chat.ID.String()).Msg("referenced chat lookup failed")
		return noMessagesBlock(chat.Name)
	}
	msgs = r.narrow(ctx, cues, msgs)
	return contextBlock(chat.Name, transcript(msgs))
}

// resolvePills подтягивает контекст явно прикрепленных чатов параллельно
func (r *Resolver) resolvePills(ctx context.Context, text string, sub *Submission, chats []models.Chat) []string {
	byID := make(map[uuid.UUID]*models.Chat, len(chats))
	for i := range chats {
		byID[chats[i].ID] = &chats[i]
	}

	var refs []*models.Chat
	seen := make(map[uuid.UUID]bool)
	for _, id := range sub.Input.ReferencedChatIDs {
		chat, ok := byID[id]
		if !ok || seen[id] || id == sub.Chat.ID {
			continue
		}
		seen[id] = true
		refs = append(refs, chat)
	}
	if len(refs) == 0 {
		return nil
	}

	contexts := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, chat := range refs {
		g.Go(func() error {
			ri, ok := r.cls.reference(gctx, text, chat.Name)
			if ok && !*ri.Relevant {
				return nil
			}

			msgs, err := r.store.GetChatMessages(gctx, chat.ID)
			if err != nil {
				log.Ctx(gctx).Warn().Err(err).Str("ref_chat_id", chat.ID.String()).Msg("referenced chat lookup failed")
				return nil
			}
			if ok && len(ri.SearchTerms) > 0 {
				msgs = r.narrow(gctx, strings.Join(ri.SearchTerms, ", "), msgs)
			}
			if len(msgs) == 0 {
				return nil
			}
			contexts[i] = contextBlock(chat.Name, transcript(msgs))
			return nil
		})
	}
	_ = g.Wait()

	out := contexts[:0]
	for _, c := range contexts {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// narrow оставляет обмены, связанные с темой. Без мнения модели история не меняется
func (r *Resolver) narrow(ctx context.Context, cues string, msgs []models.Message) []models.Message {
	if len(msgs) < config.RelevancePassMinSize {
		return msgs
	}

	groups := exchanges(msgs)
	texts := make([]string, len(groups))
	for i, g := range groups {
		texts[i] = transcript(g)
	}

	indices, ok := r.cls.relevant(ctx, cues, texts)
	if !ok || len(indices) == 0 {
		return msgs
	}

	keep := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(groups) {
			keep[i] = true
		}
	}
	if len(keep) == 0 {
		return msgs
	}

	var out []models.Message
	for i, g := range groups {
		if keep[i] {
			out = append(out, g...)
		}
	}
	return out
}

// exchanges группирует сообщение пользователя с ответами на него
func exchanges(msgs []models.Message) [][]models.Message {
	var out [][]models.Message
	for _, m := range msgs {
		if m.Role == models.RoleUser || len(out) == 0 {
			out = append(out, []models.Message{m})
			continue
		}
		out[len(out)-1] = append(out[len(out)-1], m)
	}
	return out
}

// history история чата без текущего сообщения. При наличии сводки первые сообщения опускаются
func (r *Resolver) history(ctx context.Context, chat *models.Chat, currentID uuid.UUID) []models.Message {
	msgs, err := r.store.GetChatMessages(ctx, chat.ID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("chat history lookup failed")
		return nil
	}
	if chat.Summary != nil && len(msgs) > config.SummaryWindow {
		msgs = msgs[config.SummaryWindow:]
	}

	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != currentID {
			out = append(out, m)
		}
	}
	return out
}

// recent окно смены темы: последние сообщения чата перед текущим, без учета сводки
func (r *Resolver) recent(ctx context.Context, chatID, currentID uuid.UUID) []models.Message {
	msgs, err := r.store.RecentMessages(ctx, chatID, config.RecentTopicWindow+1)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("recent messages lookup failed")
		return nil
	}

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != currentID {
			out = append(out, m)
		}
	}
	return tail(out, config.RecentTopicWindow)
}

func (r *Resolver) searchContext(ctx context.Context, text string) string {
	if r.searcher == nil {
		return ""
	}

	query, ok := explicitSearch(text)
	if !ok {
		query, ok = r.decideSearch(ctx, text)
	}
	if !ok {
		return ""
	}

	res := r.searcher.Search(ctx, query, config.SearchResultCount)
	if !res.OK {
		log.Ctx(ctx).Warn().Str("reason", string(res.Reason)).Str("detail", res.Message).Msg("web search failed")
	}
	return formatSearch(query, res)
}

func explicitSearch(text string) (string, bool) {
	if !explicitSearchRegexp.MatchString(text) {
		return "", false
	}
	return searchQuery(text), true
}

func (r *Resolver) decideSearch(ctx context.Context, text string) (string, bool) {
	if r.responder == nil {
		return "", false
	}
	res, err := r.responder.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: searchDecisionPrompt(text)}})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("search decision failed")
		return "", false
	}

	var verdict struct {
		Search bool   `json:"search"`
		Query  string `json:"query"`
	}
	if !decodeJSON(res.Text, &verdict) || !verdict.Search {
		return "", false
	}
	if strings.TrimSpace(verdict.Query) == "" {
		return searchQuery(text), true
	}
	return searchQuery(verdict.Query), true
}

func searchQuery(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxSearchQueryLen {
		s = string(r[:maxSearchQueryLen])
	}
	return s
}

func formatSearch(query string, res search.Result) string {
	if !res.OK {
		reason := "the search service is unavailable"
		if res.Reason == search.ReasonRateLimited {
			reason = "the search quota has been exceeded"
		}
		return fmt.Sprintf("A web search for %q was attempted but failed because %s. "+
			"Tell the user live results are unavailable and do not invent links or sources.", query, reason)
	}
	if len(res.Items) == 0 {
		return fmt.Sprintf("A web search for %q returned no results. Do not invent links or sources.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for %q:\n", query)
	for i, it := range res.Items {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, it.Title, it.Link, it.Snippet)
	}
	b.WriteString("Cite these links when they support your answer.")
	return b.String()
}

func toLLM(m models.Message, group bool) (llm.Message, bool) {
	switch m.Role {
	case models.RoleUser:
		content := m.Content
		if group {
			content = m.SenderName + ": " + content
		}
		return llm.Message{Role: llm.RoleUser, Content: content}, true
	case models.RoleAssistant:
		return llm.Message{Role: llm.RoleAssistant, Content: m.Content}, true
	}
	return llm.Message{}, false
}

func lastAssistantReplies(history []models.Message, n int) []string {
	var out []string
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == models.RoleAssistant {
			out = append(out, history[i].Content)
		}
	}
	return out
}

func tail(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
