package translate

import (
	"context"
	"net/http"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Ollama talks to a local Ollama server through /api/chat.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates an Ollama backend. Timeouts come from the request context.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

func (o *Ollama) Translate(ctx context.Context, req Request) (string, error) {
	payload := ollamaRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(req.SourceLang, req.TargetLang)},
			{Role: "user", Content: req.Text},
		},
		Stream:  false,
		Options: map[string]any{"temperature": 0.1},
	}

	var resp ollamaResponse
	if err := postJSON(ctx, o.client, "ollama", o.baseURL+"/api/chat", nil, payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &StatusError{Backend: "ollama", Code: http.StatusOK, Body: resp.Error}
	}
	return Clean(resp.Message.Content)
}
