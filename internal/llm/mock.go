package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/prompt"
)

// MockClient returns canned, deterministic responses so the whole call flow
// can run without network access.
type MockClient struct{}

func (MockClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Schema != nil {
		var v any
		switch req.Schema.Name {
		case prompt.PersonaSchema.Name:
			v = domain.Persona{
				Name:            "Amaya Perera",
				Age:             34,
				Background:      "A software engineer buying her first apartment in Colombo.",
				Interests:       "Financial security and a short commute.",
				TopicOfInterest: "Mortgage options",
				Concerns:        []string{"Hidden fees", "Interest rate changes"},
				Personality:     "Curious but cautious",
			}
		case prompt.EvaluationSchema.Name:
			v = domain.EvaluationReport{
				OverallScore:    7,
				OverallFeedback: "Good rapport and clear questions. Summarize next steps before closing.",
				Evaluation: []domain.CriterionScore{
					{Criteria: "Overall Communication Quality", Score: 7, Feedback: "Clear and polite throughout."},
				},
			}
		default:
			return "", fmt.Errorf("mock: unknown schema %q", req.Schema.Name)
		}
		b, err := json.Marshal(v)
		return string(b), err
	}
	if req.System == "" {
		return "What matters most to you in this decision?", nil
	}
	last := ""
	if n := len(req.Messages); n > 0 {
		last = strings.TrimSpace(req.Messages[n-1].Text)
	}
	switch last {
	case prompt.OpeningMessage:
		return "Hi, thanks for calling. I've been thinking about this for a while and have a few questions.", nil
	case prompt.FollowUpMessage:
		return "Hello again. I went over our last conversation and a few more questions came up.", nil
	}
	return fmt.Sprintf("I see. You said %q. Can you tell me more?", last), nil
}
