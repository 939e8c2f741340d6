package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Completer using the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gemini: model must be specified")
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	temp := p.Temperature
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       &temp,
		CandidateCount:    1,
	}
	if p.JSON {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = schemaFor(p.Site)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), gc)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			slog.Error("gemini: api error", "site", p.Site, "code", apiErr.Code, "err", err)
		}
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

var (
	intList = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeInteger}}

	mergeSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"groups": {Type: genai.TypeArray, Items: intList},
		},
		Required: []string{"groups"},
	}
	rankSchema = &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"order": intList},
		Required:   []string{"order"},
	}
	critiqueSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"verdict": {Type: genai.TypeString, Enum: []string{"approved", "needs_revision"}},
			"findings": {Type: genai.TypeArray, Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"category": {Type: genai.TypeString, Enum: []string{"novelty", "clarity", "length", "tone"}},
					"severity": {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
					"detail":   {Type: genai.TypeString},
				},
				Required: []string{"category", "severity", "detail"},
			}},
		},
		Required: []string{"verdict", "findings"},
	}
	emailSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_sauna_related":   {Type: genai.TypeBoolean},
			"confidence":         {Type: genai.TypeNumber},
			"summary":            {Type: genai.TypeString},
			"compressed_content": {Type: genai.TypeString},
		},
		Required: []string{"is_sauna_related", "confidence", "summary", "compressed_content"},
	}
)

var readingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"index":              {Type: genai.TypeInteger},
		"source_publication": {Type: genai.TypeString},
		"summary":            {Type: genai.TypeString},
		"article_type":       {Type: genai.TypeString, Enum: []string{"research", "cultural", "news"}},
		"no_article_found":   {Type: genai.TypeBoolean},
	},
}

func schemaFor(site Site) *genai.Schema {
	switch site {
	case SiteMerge:
		return mergeSchema
	case SiteRank:
		return rankSchema
	case SiteCritique:
		return critiqueSchema
	case SiteEmail:
		return emailSchema
	case SiteReading:
		return readingSchema
	}
	return nil
}
