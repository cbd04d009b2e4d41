package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nguyentantai21042004/transflow/internal/config"
	"github.com/nguyentantai21042004/transflow/internal/logger"
)

func TestLanguageName(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"fr", "French"},
		{"de", "German"},
		{"auto", "the source language"},
		{"", "the source language"},
		{"!!", "!!"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := LanguageName(tt.tag); got != tt.want {
				t.Errorf("LanguageName(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", "Bonjour", "Bonjour", false},
		{"commentary line", "Here is the translation:\nBonjour le monde", "Bonjour le monde", false},
		{"french commentary", "Voici la traduction :\nBonjour", "Bonjour", false},
		{"trailing note", "Bonjour\nNote: informal register", "Bonjour", false},
		{"echoed rules", "Rules:\nBonjour", "Bonjour", false},
		{"french rules and hint", "Règles: traduire\nBonjour\nIndice: registre familier", "Bonjour", false},
		{"spaced prefixes", "Translation : Bonjour\nRemarque : informel\nSalut", "Salut", false},
		{"keyword lines", "Traduction\nBonjour\nRULES", "Bonjour", false},
		{"the following", "The following is the French text.\nBonjour", "Bonjour", false},
		{"quoted", `"Bonjour"`, "Bonjour", false},
		{"keeps inner line breaks", "Ligne un\nLigne deux", "Ligne un\nLigne deux", false},
		{"only commentary", "Translation:\n", "", true},
		{"blank", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clean(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Clean() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("Clean() error = %v, want ErrEmptyResponse", err)
			}
			if got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOllamaTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "mistral:7b" || req.Stream {
			t.Errorf("request model=%q stream=%v", req.Model, req.Stream)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "Hello" {
			t.Errorf("messages = %+v, want system + single user text", req.Messages)
		}
		if !strings.Contains(req.Messages[0].Content, "to French") {
			t.Errorf("system prompt = %q, want target language named", req.Messages[0].Content)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Message: chatMessage{Role: "assistant", Content: "Translation:\nBonjour"}})
	}))
	defer srv.Close()

	got, err := NewOllama(srv.URL+"/", "mistral:7b").Translate(context.Background(), Request{Text: "Hello", SourceLang: "en", TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "Bonjour" {
		t.Errorf("Translate() = %q, want %q", got, "Bonjour")
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m").Translate(context.Background(), Request{Text: "Hello", TargetLang: "fr"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Errorf("Translate() error = %v, want StatusError 503", err)
	}
}

func TestOpenAITranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Monde"}}]}`))
	}))
	defer srv.Close()

	got, err := NewOpenAI(srv.URL+"/v1", "sk-test", "gpt").Translate(context.Background(), Request{Text: "World", TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "Monde" {
		t.Errorf("Translate() = %q, want %q", got, "Monde")
	}
}

func TestOpenAINoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := NewOpenAI(srv.URL, "", "gpt").Translate(context.Background(), Request{Text: "x"}); err == nil {
		t.Error("Translate() should fail without choices")
	}
}

func TestGeminiRotatesKeysOnQuota(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("x-goog-api-key") == "exhausted" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Encore"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini([]string{"exhausted", "fresh"}, "gemini-2.5-flash", srv.URL+"/", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	got, err := g.Translate(context.Background(), Request{Text: "Again", SourceLang: "en", TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "Encore" {
		t.Errorf("Translate() = %q, want %q", got, "Encore")
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestIsQuotaError(t *testing.T) {
	if !isQuotaError(errors.New("Error 429, RESOURCE_EXHAUSTED")) {
		t.Error("429 not treated as quota error")
	}
	if isQuotaError(errors.New("invalid argument")) {
		t.Error("invalid argument treated as quota error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.TranslationConfig
		wantName string
		wantErr  bool
	}{
		{"ollama default", config.TranslationConfig{Ollama: config.OllamaConfig{Model: "mistral:7b"}}, "ollama:mistral:7b", false},
		{"openai", config.TranslationConfig{Backend: "openai", OpenAI: config.OpenAIConfig{Model: "gpt"}}, "openai:gpt", false},
		{"gemini without keys", config.TranslationConfig{Backend: "gemini"}, "", true},
		{"unknown", config.TranslationConfig{Backend: "smoke-signals"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg, logger.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tr.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", tr.Name(), tt.wantName)
			}
		})
	}
}
