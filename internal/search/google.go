package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/pkg/log"
)

const maxResults = 10

// GoogleClient клиент Custom Search JSON API
type GoogleClient struct {
	apiKey     string
	engineID   string
	baseURL    string
	httpClient *http.Client
}

func NewGoogleClient(apiKey, engineID, baseURL string) *GoogleClient {
	return &GoogleClient{
		apiKey:     apiKey,
		engineID:   engineID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.AuxTimeout},
	}
}

type googleResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		HTMLSnippet string `json:"htmlSnippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (c *GoogleClient) Search(ctx context.Context, query string, count int) Result {
	if c.apiKey == "" || c.engineID == "" {
		return failed(ReasonNotConfigured, "web search is not configured")
	}
	if count <= 0 || count > maxResults {
		count = maxResults
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return failed(ReasonFailed, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("search request failed")
		return failed(ReasonFailed, "search request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(ReasonFailed, fmt.Sprintf("read response: %v", err))
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failed(ReasonFailed, fmt.Sprintf("parse response: %v", err))
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		if rateLimited(resp.StatusCode, &parsed) {
			return failed(ReasonRateLimited, "search quota exceeded")
		}
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return failed(ReasonFailed, msg)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		snippet := it.Snippet
		if it.HTMLSnippet != "" {
			if text, ok := stripHTML(it.HTMLSnippet); ok {
				snippet = text
			}
		}
		items = append(items, Item{Title: it.Title, Link: it.Link, Snippet: snippet})
	}

	return Result{OK: true, Items: items}
}

func rateLimited(status int, r *googleResponse) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if r.Error == nil {
		return false
	}
	for _, e := range r.Error.Errors {
		if strings.Contains(e.Reason, "rateLimitExceeded") || strings.Contains(e.Reason, "dailyLimitExceeded") {
			return true
		}
	}
	return false
}

// stripHTML оставляет только текст фрагмента
func stripHTML(fragment string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", false
	}
	return strings.Join(strings.Fields(doc.Text()), " "), true
}
