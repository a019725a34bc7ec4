package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/thereayou/teamchat/internal/config"
)

const (
	apiVersion     = "2023-06-01"
	auxMaxTokens   = 1024
	maxErrorBodyKB = 64
)

type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	auxModel   string
	maxTokens  int
	httpClient *http.Client
}

type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	AuxModel  string
	MaxTokens int
}

func NewAnthropicClient(opts Options) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		auxModel:   opts.AuxModel,
		maxTokens:  opts.MaxTokens,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage Usage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete возвращает ответ целиком
func (c *AnthropicClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	return c.complete(ctx, c.model, c.maxTokens, messages)
}

// Ask вызывает вспомогательную модель с одним промптом
func (c *AnthropicClient) Ask(ctx context.Context, prompt string) (string, error) {
	res, err := c.complete(ctx, c.auxModel, auxMaxTokens, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (c *AnthropicClient) complete(ctx context.Context, model string, maxTokens int, messages []Message) (*Completion, error) {
	req, err := buildRequest(model, maxTokens, messages)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Completion{Text: text.String(), Model: parsed.Model, Usage: parsed.Usage}, nil
}

type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Model string `json:"model"`
		Usage Usage  `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage Usage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream отдает текст по частям через onDelta и возвращает собранный ответ
func (c *AnthropicClient) Stream(ctx context.Context, messages []Message, onDelta func(string)) (*Completion, error) {
	req, err := buildRequest(c.model, c.maxTokens, messages)
	if err != nil {
		return nil, err
	}
	req.Stream = true

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &Completion{Model: c.model}
	var text strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("parse stream event: %w", err)
		}

		switch ev.Type {
		case "message_start":
			if ev.Message.Model != "" {
				res.Model = ev.Message.Model
			}
			res.Usage.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				text.WriteString(ev.Delta.Text)
				if onDelta != nil {
					onDelta(ev.Delta.Text)
				}
			}
		case "message_delta":
			if ev.Usage.OutputTokens > 0 {
				res.Usage.OutputTokens = ev.Usage.OutputTokens
			}
		case "error":
			return nil, &APIError{Status: resp.StatusCode, Type: ev.Error.Type, Message: ev.Error.Message}
		case "message_stop":
			res.Text = text.String()
			return res, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return nil, fmt.Errorf("stream ended without message_stop")
}

func (c *AnthropicClient) post(ctx context.Context, body *messagesRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messages request: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyKB*1024))

		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Type != "" {
			apiErr.Type = parsed.Error.Type
			apiErr.Message = parsed.Error.Message
		}
		return nil, apiErr
	}

	return resp, nil
}
