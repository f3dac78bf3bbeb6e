package llm

import (
	"testing"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/config"
)

func TestNewModel(t *testing.T) {
	cases := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"gemini", "*llm.GeminiClient", false},
		{"", "*llm.GeminiClient", false},
		{"cerebras", "*llm.CerebrasClient", false},
		{"mock", "llm.MockClient", false},
		{"openai", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			m, err := NewModel(config.Config{LLMProvider: tc.provider, GeminiModelID: "gemini-2.5-flash"})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.provider)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(m); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func typeName(m Model) string {
	switch m.(type) {
	case *GeminiClient:
		return "*llm.GeminiClient"
	case *CerebrasClient:
		return "*llm.CerebrasClient"
	case MockClient:
		return "llm.MockClient"
	}
	return "unknown"
}
