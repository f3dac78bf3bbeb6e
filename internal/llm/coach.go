package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/agent"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/prompt"
)

// Coach builds every model-backed feature of the simulator on one Model.
type Coach struct {
	model Model
	log   logrus.FieldLogger
}

func NewCoach(m Model, log logrus.FieldLogger) *Coach {
	return &Coach{model: m, log: logging.Or(log).WithField("component", "coach")}
}

// StartChat opens a persona conversation. A non-empty history resumes a previous call.
func (c *Coach) StartChat(_ context.Context, p domain.Persona, scenario string, history domain.Transcript) (agent.Chat, error) {
	if err := history.Validate(); err != nil {
		return nil, fmt.Errorf("start chat: %w", err)
	}
	msgs := make([]Message, 0, len(history))
	for _, turn := range history {
		role := RoleUser
		if turn.Speaker == domain.SpeakerAgent {
			role = RoleModel
		}
		msgs = append(msgs, Message{Role: role, Text: turn.Text})
	}
	return &ChatSession{
		model:   c.model,
		system:  prompt.SystemInstruction(p, scenario),
		history: msgs,
	}, nil
}

// ChatSession keeps the persona's side of the conversation.
type ChatSession struct {
	model  Model
	system string

	mu      sync.Mutex
	history []Message
}

// Send returns the persona's reply. The exchange is only recorded when it succeeds.
func (s *ChatSession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	msgs := make([]Message, len(s.history), len(s.history)+1)
	copy(msgs, s.history)
	s.mu.Unlock()
	msgs = append(msgs, Message{Role: RoleUser, Text: text})

	reply, err := s.model.Generate(ctx, Request{System: s.system, Messages: msgs})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)

	s.mu.Lock()
	s.history = append(s.history, Message{Role: RoleUser, Text: text}, Message{Role: RoleModel, Text: reply})
	s.mu.Unlock()
	return reply, nil
}

// Len reports how many messages the chat has recorded.
func (s *ChatSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Hint suggests the trainee's next question.
func (c *Coach) Hint(ctx context.Context, t domain.Transcript, scenario, country string) (string, error) {
	out, err := c.model.Generate(ctx, Request{
		Messages:   []Message{{Role: RoleUser, Text: prompt.Hint(t, scenario, country)}},
		NoThinking: true,
	})
	if err != nil {
		return "", fmt.Errorf("hint: %w", err)
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

// GeneratePersona creates a persona for the settings screen.
func (c *Coach) GeneratePersona(ctx context.Context, d domain.Difficulty, scenario, directives, country string) (domain.Persona, error) {
	out, err := c.model.Generate(ctx, Request{
		Messages: []Message{{Role: RoleUser, Text: prompt.Persona(d, scenario, directives, country)}},
		Schema:   &prompt.PersonaSchema,
	})
	if err != nil {
		return domain.Persona{}, fmt.Errorf("generate persona: %w", err)
	}
	p, err := prompt.DecodePersona([]byte(out))
	if err != nil {
		c.log.WithError(err).Warn("persona response rejected")
		return domain.Persona{}, fmt.Errorf("generate persona: %w", err)
	}
	return p, nil
}

// Evaluate scores a finished call.
func (c *Coach) Evaluate(ctx context.Context, t domain.Transcript, p domain.Persona, scenario, criteria, country string) (domain.EvaluationReport, error) {
	out, err := c.model.Generate(ctx, Request{
		Messages: []Message{{Role: RoleUser, Text: prompt.Evaluation(t, p, scenario, criteria, country)}},
		Schema:   &prompt.EvaluationSchema,
	})
	if err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("evaluate: %w", err)
	}
	r, err := prompt.DecodeEvaluation([]byte(out))
	if err != nil {
		c.log.WithError(err).Warn("evaluation response rejected")
		return domain.EvaluationReport{}, fmt.Errorf("evaluate: %w", err)
	}
	return r, nil
}
