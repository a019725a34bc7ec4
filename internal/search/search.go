// Package search веб-поиск для дополнения контекста ответа
package search

import "context"

type Reason string

const (
	ReasonRateLimited   Reason = "rate_limited"
	ReasonFailed        Reason = "failed"
	ReasonNotConfigured Reason = "not_configured"
)

type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Result результат поиска. При OK == false заполнены Reason и Message
type Result struct {
	OK      bool   `json:"ok"`
	Items   []Item `json:"items,omitempty"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type Searcher interface {
	Search(ctx context.Context, query string, count int) Result
}

func failed(reason Reason, msg string) Result {
	return Result{Reason: reason, Message: msg}
}
