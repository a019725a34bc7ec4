package llm

import (
	"strings"
)

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiMessage struct {
	Role    Role           `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Stream    bool         `json:"stream,omitempty"`
}

// buildRequest переводит историю в формат API: системные сообщения уходят в system,
// подряд идущие сообщения одной роли склеиваются, первым всегда идет user
func buildRequest(model string, maxTokens int, messages []Message) (*messagesRequest, error) {
	req := &messagesRequest{Model: model, MaxTokens: maxTokens}

	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
			continue
		}

		blocks := make([]contentBlock, 0, 1+len(m.Images))
		for _, img := range m.Images {
			if src, ok := parseDataURL(img); ok {
				blocks = append(blocks, contentBlock{Type: "image", Source: src})
			}
		}
		if strings.TrimSpace(m.Content) != "" {
			blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
		}
		if len(blocks) == 0 {
			continue
		}

		n := len(req.Messages)
		if n > 0 && req.Messages[n-1].Role == m.Role {
			req.Messages[n-1].Content = append(req.Messages[n-1].Content, blocks...)
			continue
		}
		req.Messages = append(req.Messages, apiMessage{Role: m.Role, Content: blocks})
	}

	if len(req.Messages) == 0 {
		return nil, ErrEmptyInput
	}
	if req.Messages[0].Role != RoleUser {
		req.Messages = append([]apiMessage{{
			Role:    RoleUser,
			Content: []contentBlock{{Type: "text", Text: "(conversation continues)"}},
		}}, req.Messages...)
	}

	req.System = strings.Join(system, "\n\n")
	return req, nil
}

// parseDataURL разбирает data:image/png;base64,XXXX
func parseDataURL(s string) (*imageSource, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, false
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok || data == "" {
		return nil, false
	}
	mediaType, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" || !strings.HasPrefix(mediaType, "image/") {
		return nil, false
	}
	return &imageSource{Type: "base64", MediaType: mediaType, Data: data}, true
}
