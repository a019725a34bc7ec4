package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/pkg/log"
)

type Intent string

const (
	IntentAcknowledgment Intent = "ACKNOWLEDGMENT"
	IntentGreeting       Intent = "GREETING"
	IntentSubstantive    Intent = "SUBSTANTIVE"
)

const (
	cannedAcknowledgment = "You're welcome! Happy to help!"
	cannedGreeting       = "Hello! How can I help you today?"
	cannedRedundant      = "It looks like I already covered that in my previous reply. Could you tell me which part you'd like me to expand on, or what else you need?"
)

// stripCodeFence убирает обертку ```json ... ``` вокруг ответа модели
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeJSON разбирает JSON из ответа модели. false означает "нет мнения"
func decodeJSON(raw string, v any) bool {
	s := stripCodeFence(raw)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return false
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return false
	}
	return json.Unmarshal([]byte(s[start:end+1]), v) == nil
}

// classifier обертка над вспомогательной моделью: ошибки и мусор превращаются в "нет мнения"
type classifier struct {
	aux Auxiliary
}

func (c classifier) ask(ctx context.Context, kind, prompt string) (string, bool) {
	if c.aux == nil {
		return "", false
	}
	out, err := c.aux.Ask(ctx, prompt)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("kind", kind).Msg("auxiliary model call failed")
		return "", false
	}
	return out, true
}

func (c classifier) intent(ctx context.Context, text string) Intent {
	out, ok := c.ask(ctx, "intent", intentPrompt(text))
	if !ok {
		return IntentSubstantive
	}
	upper := strings.ToUpper(stripCodeFence(out))
	switch {
	case strings.Contains(upper, string(IntentAcknowledgment)):
		return IntentAcknowledgment
	case strings.Contains(upper, string(IntentGreeting)):
		return IntentGreeting
	default:
		return IntentSubstantive
	}
}

func (c classifier) redundant(ctx context.Context, text string, previous []string) bool {
	if len(previous) == 0 {
		return false
	}
	out, ok := c.ask(ctx, "redundancy", redundancyPrompt(text, previous))
	if !ok {
		return false
	}
	var verdict struct {
		Redundant bool `json:"redundant"`
	}
	return decodeJSON(out, &verdict) && verdict.Redundant
}

// topicChanged возвращает (сменилась ли тема, есть ли мнение)
func (c classifier) topicChanged(ctx context.Context, text string, recent []models.Message) (bool, bool) {
	out, ok := c.ask(ctx, "topic", topicPrompt(text, recent))
	if !ok {
		return false, false
	}
	var verdict struct {
		TopicChanged *bool `json:"topic_changed"`
	}
	if !decodeJSON(out, &verdict) || verdict.TopicChanged == nil {
		return false, false
	}
	return *verdict.TopicChanged, true
}

type referenceIntent struct {
	Relevant    *bool    `json:"relevant"`
	SearchTerms []string `json:"search_terms"`
}

func (c classifier) reference(ctx context.Context, text, chatName string) (referenceIntent, bool) {
	out, ok := c.ask(ctx, "reference", referencePrompt(text, chatName))
	if !ok {
		return referenceIntent{}, false
	}
	var ri referenceIntent
	if !decodeJSON(out, &ri) || ri.Relevant == nil {
		return referenceIntent{}, false
	}
	return ri, true
}

// relevant возвращает номера релевантных обменов или false без мнения
func (c classifier) relevant(ctx context.Context, cues string, exchanges []string) ([]int, bool) {
	out, ok := c.ask(ctx, "relevance", relevancePrompt(cues, exchanges))
	if !ok {
		return nil, false
	}
	var verdict struct {
		Indices []int `json:"indices"`
	}
	if !decodeJSON(out, &verdict) {
		return nil, false
	}
	return verdict.Indices, true
}

func (c classifier) summarize(ctx context.Context, messages []models.Message) (string, bool) {
	out, ok := c.ask(ctx, "summary", summaryPrompt(messages))
	if !ok {
		return "", false
	}
	out = strings.TrimSpace(stripCodeFence(out))
	return out, out != ""
}

func transcript(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "%s: %s\n", m.SenderName, m.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "Claude: %s\n", m.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
