package translate

import (
	"fmt"

	"github.com/nguyentantai21042004/transflow/internal/config"
	"github.com/nguyentantai21042004/transflow/internal/logger"
)

// New builds the backend selected by cfg.Backend.
func New(cfg config.TranslationConfig, log logger.Logger) (Translator, error) {
	switch cfg.Backend {
	case "", "ollama":
		return NewOllama(cfg.Ollama.URL, cfg.Ollama.Model), nil
	case "openai":
		return NewOpenAI(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	case "gemini":
		return NewGemini(cfg.Gemini.APIKeys, cfg.Gemini.Model, "", log)
	default:
		return nil, fmt.Errorf("unknown translation backend %q", cfg.Backend)
	}
}
