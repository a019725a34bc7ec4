package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry элемент истории. Набор полей зависит от роли
type Entry interface {
	EntryRole() Role
	EntryText() string
}

type UserEntry struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Images     []string  `json:"images,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type AssistantEntry struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"inputTokens,omitempty"`
	OutputTokens int       `json:"outputTokens,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PromptEntry общий промпт, собранный участниками по кругу
type PromptEntry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type SystemEntry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserEntry) EntryRole() Role      { return RoleUser }
func (AssistantEntry) EntryRole() Role { return RoleAssistant }
func (PromptEntry) EntryRole() Role    { return RolePrompt }
func (SystemEntry) EntryRole() Role    { return RoleSystem }

func (e UserEntry) EntryText() string      { return e.Text }
func (e AssistantEntry) EntryText() string { return e.Text }
func (e PromptEntry) EntryText() string    { return e.Text }
func (e SystemEntry) EntryText() string    { return e.Text }

func (e UserEntry) MarshalJSON() ([]byte, error) {
	type alias UserEntry
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleUser, alias(e)})
}

func (e AssistantEntry) MarshalJSON() ([]byte, error) {
	type alias AssistantEntry
	return json.Marshal(struct {
		Role   Role   `json:"role"`
		Sender string `json:"sender"`
		alias
	}{RoleAssistant, "claude", alias(e)})
}

func (e PromptEntry) MarshalJSON() ([]byte, error) {
	type alias PromptEntry
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RolePrompt, alias(e)})
}

func (e SystemEntry) MarshalJSON() ([]byte, error) {
	type alias SystemEntry
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleSystem, alias(e)})
}

// Entry переводит строку БД в вариант по роли
func (m *Message) Entry() Entry {
	switch m.Role {
	case RoleAssistant:
		e := AssistantEntry{ID: m.ID, Text: m.Content, CreatedAt: m.CreatedAt}
		if m.Model != nil {
			e.Model = *m.Model
		}
		if m.InputTokens != nil {
			e.InputTokens = *m.InputTokens
		}
		if m.OutputTokens != nil {
			e.OutputTokens = *m.OutputTokens
		}
		return e
	case RolePrompt:
		return PromptEntry{ID: m.ID, Text: m.Content, CreatedAt: m.CreatedAt}
	case RoleSystem:
		return SystemEntry{ID: m.ID, Text: m.Content, CreatedAt: m.CreatedAt}
	default:
		e := UserEntry{ID: m.ID, SenderName: m.SenderName, Text: m.Content, Images: m.ImageList(), CreatedAt: m.CreatedAt}
		if m.SenderID != nil {
			e.SenderID = *m.SenderID
		}
		return e
	}
}

func Entries(messages []Message) []Entry {
	out := make([]Entry, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].Entry())
	}
	return out
}
