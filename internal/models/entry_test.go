package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEntry(t *testing.T) {
	sender := uuid.New()
	model := "claude-test"
	in, out := 12, 34

	tests := []struct {
		name string
		msg  Message
		want Role
	}{
		{"user", Message{Role: RoleUser, SenderID: &sender, SenderName: "Bob", Content: "hi"}, RoleUser},
		{"assistant", Message{Role: RoleAssistant, Content: "hello", Model: &model, InputTokens: &in, OutputTokens: &out}, RoleAssistant},
		{"prompt", Message{Role: RolePrompt, Content: "write a poem"}, RolePrompt},
		{"system", Message{Role: RoleSystem, Content: "Error connecting to AI."}, RoleSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.msg.Entry()
			assert.Equal(t, tt.want, e.EntryRole())
			assert.Equal(t, tt.msg.Content, e.EntryText())

			raw, err := json.Marshal(e)
			require.NoError(t, err)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, string(tt.want), decoded["role"])
			assert.Equal(t, tt.msg.Content, decoded["text"])
		})
	}
}

func TestAssistantEntryFields(t *testing.T) {
	model := "claude-test"
	in, out := 5, 7
	msg := Message{Role: RoleAssistant, Content: "x", Model: &model, InputTokens: &in, OutputTokens: &out}

	e, ok := msg.Entry().(AssistantEntry)
	require.True(t, ok)
	assert.Equal(t, "claude-test", e.Model)
	assert.Equal(t, 5, e.InputTokens)
	assert.Equal(t, 7, e.OutputTokens)
}

func TestMessageImages(t *testing.T) {
	var m Message
	assert.Nil(t, m.ImageList())

	m.SetImages([]string{"data:image/png;base64,AAAA"})
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, m.ImageList())

	m.SetImages(nil)
	assert.Nil(t, m.Images)
}

func TestChatLocked(t *testing.T) {
	owner := uuid.New()
	c := Chat{Type: ChatIndividual, OwnerID: &owner, MessageCount: 99}
	assert.False(t, c.Locked(1000))
	assert.True(t, c.OwnedBy(owner))
	assert.False(t, c.OwnedBy(uuid.New()))

	c.MessageCount = 100
	assert.True(t, c.Locked(1000))

	c.MessageCount = 1
	c.TokenCount = 1000
	assert.True(t, c.Locked(1000))
	assert.False(t, c.Locked(0))
}
