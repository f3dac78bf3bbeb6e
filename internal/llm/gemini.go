package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/prompt"
)

// GeminiClient calls Gemini through the genai SDK. With Stream set, plain-text
// requests use GenerateContentStream and concatenate the chunks.
type GeminiClient struct {
	client *genai.Client
	Model  string
	Stream bool
}

// NewGeminiClient builds a client for the Gemini API. baseURL overrides the SDK
// endpoint and is empty in production. A missing key is reported by Generate.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string) (*GeminiClient, error) {
	c := &GeminiClient{Model: model, Stream: true}
	if apiKey == "" {
		return c, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		contents = append(contents, genai.NewContentFromText(m.Text, genai.Role(m.Role)))
	}
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		schema, err := geminiSchema(req.Schema)
		if err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}
	if req.NoThinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
	}

	var answer string
	if c.Stream && req.Schema == nil {
		var b strings.Builder
		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.Model, contents, cfg) {
			if err != nil {
				return "", fmt.Errorf("gemini: %w", err)
			}
			if err := blocked(chunk); err != nil {
				return "", err
			}
			b.WriteString(chunk.Text())
		}
		answer = b.String()
	} else {
		resp, err := c.client.Models.GenerateContent(ctx, c.Model, contents, cfg)
		if err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
		if err := blocked(resp); err != nil {
			return "", err
		}
		answer = resp.Text()
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	if req.Schema != nil {
		answer = stripFences(answer)
	}
	return answer, nil
}

func blocked(resp *genai.GenerateContentResponse) error {
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	return nil
}

// geminiSchema converts the model-facing schema map into the SDK's Schema type.
func geminiSchema(s *prompt.Schema) (*genai.Schema, error) {
	raw, err := json.Marshal(s.Wire)
	if err != nil {
		return nil, fmt.Errorf("encode %s schema: %w", s.Name, err)
	}
	var out genai.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s schema: %w", s.Name, err)
	}
	return &out, nil
}
