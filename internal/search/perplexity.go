// Package search is a minimal Perplexity client for weekly news searches.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the Perplexity chat completions endpoint.
// Docs: https://docs.perplexity.ai/api-reference/chat-completions
type Client struct {
	baseURL string
	apiKey  string
	model   string
	recency string
	http    *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string // defaults to https://api.perplexity.ai
	Model   string // defaults to sonar
	Recency string // search_recency_filter: day, week, month
	Timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("perplexity: api key is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://api.perplexity.ai"
	}
	model := cfg.Model
	if model == "" {
		model = "sonar"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		recency: cfg.Recency,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Result is one structured search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Date    string `json:"date,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Answer is the model's answer to one query plus what it cited.
type Answer struct {
	Query     string   `json:"query"`
	Content   string   `json:"content"`
	Citations []string `json:"citations,omitempty"`
	Results   []Result `json:"results,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	SearchRecencyFilter string        `json:"search_recency_filter,omitempty"`
	ReturnCitations     bool          `json:"return_citations"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []Result `json:"search_results"`
}

const systemPrompt = `You research news for a weekly London sauna newsletter.
Answer with concrete, recent facts: venue names, dates, prices, links. Skip generic advice.`

// Search runs one query.
func (c *Client) Search(ctx context.Context, query string) (Answer, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		SearchRecencyFilter: c.recency,
		ReturnCitations:     true,
	})
	if err != nil {
		return Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return Answer{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Answer{}, fmt.Errorf("perplexity: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Answer{}, fmt.Errorf("perplexity: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return Answer{}, fmt.Errorf("perplexity: no choices for %q", query)
	}
	return Answer{
		Query:     query,
		Content:   strings.TrimSpace(out.Choices[0].Message.Content),
		Citations: out.Citations,
		Results:   out.SearchResults,
	}, nil
}
