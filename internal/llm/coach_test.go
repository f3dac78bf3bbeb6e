package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/prompt"
)

type scriptedModel struct {
	mu    sync.Mutex
	reqs  []Request
	reply string
	err   error
}

func (m *scriptedModel) Generate(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.reply, m.err
}

func TestChatSession_HistoryGrowsOnlyOnSuccess(t *testing.T) {
	model := &scriptedModel{reply: " Hi, I'm Amaya. "}
	coach := NewCoach(model, logging.Discard())
	history := domain.Transcript{
		{Speaker: domain.SpeakerAgent, Text: "Hello."},
		{Speaker: domain.SpeakerTrainee, Text: "Hi there."},
	}
	chat, err := coach.StartChat(context.Background(), domain.Persona{Name: "Amaya"}, "home buying", history)
	require.NoError(t, err)
	cs := chat.(*ChatSession)
	assert.Equal(t, 2, cs.Len())

	reply, err := chat.Send(context.Background(), prompt.FollowUpMessage)
	require.NoError(t, err)
	assert.Equal(t, "Hi, I'm Amaya.", reply)
	assert.Equal(t, 4, cs.Len())

	req := model.reqs[0]
	assert.Contains(t, req.System, "Name: Amaya")
	assert.Contains(t, req.System, `"home buying"`)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, RoleModel, req.Messages[0].Role)
	assert.Equal(t, RoleUser, req.Messages[1].Role)

	model.err = errors.New("unavailable")
	_, err = chat.Send(context.Background(), "are you there?")
	require.Error(t, err)
	assert.Equal(t, 4, cs.Len(), "failed exchange must not be recorded")
}

func TestCoach_StartChatRejectsUnknownSpeaker(t *testing.T) {
	coach := NewCoach(&scriptedModel{}, nil)
	_, err := coach.StartChat(context.Background(), domain.Persona{}, "", domain.Transcript{{Speaker: "narrator", Text: "x"}})
	require.Error(t, err)
}

func TestCoach_HintDisablesThinking(t *testing.T) {
	model := &scriptedModel{reply: `"What is your budget?"`}
	coach := NewCoach(model, nil)
	hint, err := coach.Hint(context.Background(), domain.Transcript{{Speaker: domain.SpeakerAgent, Text: "Hello"}}, "", "Canada")
	require.NoError(t, err)
	assert.Equal(t, "What is your budget?", hint)
	assert.True(t, model.reqs[0].NoThinking)
	assert.Empty(t, model.reqs[0].System)
	assert.Contains(t, model.reqs[0].Messages[0].Text, "AI: Hello")
}

func TestCoach_GeneratePersonaValidates(t *testing.T) {
	model := &scriptedModel{reply: `{"name":"Ravi","age":41,"background":"Teacher","interests":"Savings","topicOfInterest":"Pensions","concerns":["Fees"],"personality":"Calm"}`}
	coach := NewCoach(model, nil)
	p, err := coach.GeneratePersona(context.Background(), domain.DifficultyHard, "", "", "India")
	require.NoError(t, err)
	assert.Equal(t, "Ravi", p.Name)
	assert.Equal(t, &prompt.PersonaSchema, model.reqs[0].Schema)
	assert.Contains(t, model.reqs[0].Messages[0].Text, "The persona must be from India")

	model.reply = `{"name":"Ravi"}`
	_, err = coach.GeneratePersona(context.Background(), domain.DifficultyEasy, "", "", "India")
	require.Error(t, err)
}

func TestCoach_EvaluateRejectsOutOfRangeScore(t *testing.T) {
	model := &scriptedModel{reply: `{"overallScore":11,"overallFeedback":"x","evaluation":[]}`}
	coach := NewCoach(model, nil)
	_, err := coach.Evaluate(context.Background(), nil, domain.Persona{}, "", "", "Canada")
	require.Error(t, err)

	model.reply = `{"overallScore":8.5,"overallFeedback":"Solid.","evaluation":[{"criteria":"Rapport","score":9,"feedback":"Warm."}]}`
	r, err := coach.Evaluate(context.Background(), nil, domain.Persona{}, "", "Rapport", "Canada")
	require.NoError(t, err)
	assert.Equal(t, 8.5, r.OverallScore)
	require.Len(t, r.Evaluation, 1)
	assert.True(t, strings.Contains(model.reqs[1].Messages[0].Text, "Rapport"))
}

func TestMockClient_RunsWholeFlow(t *testing.T) {
	coach := NewCoach(MockClient{}, nil)
	ctx := context.Background()

	p, err := coach.GeneratePersona(ctx, domain.DifficultyMedium, "", "", "Sri Lanka")
	require.NoError(t, err)
	chat, err := coach.StartChat(ctx, p, "", nil)
	require.NoError(t, err)
	opening, err := chat.Send(ctx, prompt.OpeningMessage)
	require.NoError(t, err)
	assert.NotEmpty(t, opening)
	hint, err := coach.Hint(ctx, nil, "", "Sri Lanka")
	require.NoError(t, err)
	assert.NotEmpty(t, hint)
	r, err := coach.Evaluate(ctx, domain.Transcript{{Speaker: domain.SpeakerAgent, Text: opening}}, p, "", "", "Sri Lanka")
	require.NoError(t, err)
	assert.NotEmpty(t, r.Evaluation)
}
