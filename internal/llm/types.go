// Package llm клиент Anthropic Messages API: основной отвечающий и вспомогательная модель
package llm

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
	// Images data URL вида data:image/png;base64,...
	Images []string
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Completion struct {
	Text  string
	Model string
	Usage Usage
}

var (
	ErrRateLimited = errors.New("responder rate limited")
	ErrOverloaded  = errors.New("responder overloaded")
	ErrEmptyInput  = errors.New("no messages to send")
)

// APIError ошибка, которую вернул API
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic api %d %s: %s", e.Status, e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == 429 || e.Type == "rate_limit_error":
		return ErrRateLimited
	case e.Status == 529 || e.Type == "overloaded_error":
		return ErrOverloaded
	}
	return nil
}
