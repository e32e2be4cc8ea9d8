package provider

import (
	"errors"
	"testing"

	"github.com/careerforge/careerforge/internal/config"
)

func TestParseModelString(t *testing.T) {
	tests := []struct {
		input      string
		wantProvID string
		wantModel  string
	}{
		{"gemini/gemini-2.0-flash", "gemini", "gemini-2.0-flash"},
		{"openai/gpt-4.1", "openai", "gpt-4.1"},
		{"openrouter/anthropic/claude-sonnet-4-5", "openrouter", "anthropic/claude-sonnet-4-5"},
		{"bare-model-name", "", "bare-model-name"},
		{"", "", ""},
		{"  Gemini/gemini-2.5-pro  ", "gemini", "gemini-2.5-pro"},
	}
	for _, tt := range tests {
		provID, model := ParseModelString(tt.input)
		if provID != tt.wantProvID || model != tt.wantModel {
			t.Errorf("ParseModelString(%q) = (%q, %q), want (%q, %q)",
				tt.input, provID, model, tt.wantProvID, tt.wantModel)
		}
	}
}

func TestNormalizeProviderID(t *testing.T) {
	tests := map[string]string{
		"google":    "gemini",
		"offline":   "mock",
		"  OpenAI ": "openai",
		"GEMINI":    "gemini",
	}
	for in, want := range tests {
		if got := NormalizeProviderID(in); got != want {
			t.Errorf("NormalizeProviderID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Gemini.APIKey = "g"
	cfg.Providers.OpenAI.APIKey = "o"

	tests := []struct {
		model string
		check func(LLMProvider) bool
	}{
		{"gemini/gemini-2.0-flash", func(p LLMProvider) bool { _, ok := p.(*GeminiProvider); return ok }},
		{"google/gemini-2.0-flash", func(p LLMProvider) bool { _, ok := p.(*GeminiProvider); return ok }},
		{"openai/gpt-4o", func(p LLMProvider) bool { _, ok := p.(*OpenAIProvider); return ok }},
		{"gpt-4o", func(p LLMProvider) bool { _, ok := p.(*OpenAIProvider); return ok }},
		{"openrouter/meta/llama", func(p LLMProvider) bool {
			op, ok := p.(*OpenAIProvider)
			return ok && op.apiBase == "https://openrouter.ai/api/v1"
		}},
		{"mock/echo", func(p LLMProvider) bool { _, ok := p.(*MockProvider); return ok }},
	}
	for _, tt := range tests {
		cfg.Model.Name = tt.model
		p, err := Resolve(cfg)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.model, err)
			continue
		}
		if !tt.check(p) {
			t.Errorf("Resolve(%q) returned %T", tt.model, p)
		}
	}
}

func TestResolveMissingKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Name = "gemini/gemini-2.0-flash"

	_, err := Resolve(cfg)
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Provider != "gemini" {
		t.Fatalf("expected gemini ProviderError, got %v", err)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Name = "acme/model"
	if _, err := Resolve(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
