package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/nguyentantai21042004/transflow/internal/logger"
)

// Gemini translates with the Gemini API, rotating through API keys when one
// hits its quota.
type Gemini struct {
	apiKeys []string
	model   string
	baseURL string
	logger  logger.Logger

	mu         sync.Mutex
	currentKey int
	clients    map[string]*genai.Client
}

// NewGemini creates a Gemini backend. baseURL is empty for the public endpoint.
func NewGemini(apiKeys []string, model, baseURL string, log logger.Logger) (*Gemini, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("gemini: at least one API key is required")
	}
	return &Gemini{
		apiKeys: apiKeys,
		model:   model,
		baseURL: baseURL,
		logger:  log,
		clients: make(map[string]*genai.Client),
	}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

// Translate tries each key at most once, moving on only on quota errors.
func (g *Gemini) Translate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(req.SourceLang, req.TargetLang), genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.1)),
	}

	var lastErr error
	for range len(g.apiKeys) {
		idx, client, err := g.client(ctx)
		if err != nil {
			lastErr = err
			g.rotateFrom(idx)
			continue
		}

		result, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Text), config)
		if err != nil {
			if isQuotaError(err) {
				g.logger.Warn(ctx, "Gemini key %d rate limited, rotating...", idx+1)
				g.rotateFrom(idx)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var text strings.Builder
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			return Clean(text.String())
		}
		return "", fmt.Errorf("empty response from Gemini")
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

// client returns the current key index and a cached client for it.
func (g *Gemini) client(ctx context.Context) (int, *genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.currentKey
	key := g.apiKeys[idx]
	if c, ok := g.clients[key]; ok {
		return idx, c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return idx, nil, fmt.Errorf("create client: %w", err)
	}
	g.clients[key] = c
	return idx, c, nil
}

// rotateFrom advances past idx unless another worker already rotated.
func (g *Gemini) rotateFrom(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.currentKey == idx {
		g.currentKey = (idx + 1) % len(g.apiKeys)
	}
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
