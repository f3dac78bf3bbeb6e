// Package domain holds the plain data shared by the simulator's components.
package domain

import (
	"fmt"
	"strings"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerTrainee Speaker = "trainee"
	SpeakerAgent   Speaker = "agent"
)

// Label is the upper-case tag used when a transcript is rendered into a prompt.
func (s Speaker) Label() string {
	if s == SpeakerTrainee {
		return "USER"
	}
	return "AI"
}

// Turn is one utterance. Turns are never modified after they are appended.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript is the ordered conversation.
type Transcript []Turn

// Clone returns an independent copy so callers can hand transcripts by value.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Validate rejects turns with unknown speakers.
func (t Transcript) Validate() error {
	for i, turn := range t {
		if turn.Speaker != SpeakerTrainee && turn.Speaker != SpeakerAgent {
			return fmt.Errorf("turn %d: unknown speaker %q", i, turn.Speaker)
		}
	}
	return nil
}

// Format renders "USER: ..." / "AI: ..." lines for prompts.
func (t Transcript) Format() string {
	var b strings.Builder
	for i, turn := range t {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(turn.Speaker.Label())
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}

// Difficulty tunes how challenging a generated persona is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty is case-insensitive; unknown values map to Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Persona is the synthetic character the trainee talks to.
type Persona struct {
	Name            string   `json:"name"`
	Age             int      `json:"age"`
	Background      string   `json:"background"`
	Interests       string   `json:"interests"`
	TopicOfInterest string   `json:"topicOfInterest"`
	Concerns        []string `json:"concerns"`
	Personality     string   `json:"personality"`
}

// CallSettings are the per-call knobs chosen on the settings screen.
type CallSettings struct {
	Scenario   string  `json:"scenario"`
	Country    string  `json:"country"`
	Voice      string  `json:"voice"`
	SpeechRate float64 `json:"speechRate"`
	// TimeLimit is in seconds; zero means unlimited.
	TimeLimit int `json:"timeLimit"`
}

// Voice selects how the persona sounds.
type Voice struct {
	// Selector names a voice from the active synthesizer's catalog; empty means default policy.
	Selector string  `json:"selector"`
	Rate     float64 `json:"rate"`
	Locale   string  `json:"locale"`
}

// CriterionScore is one line of the evaluation breakdown.
type CriterionScore struct {
	Criteria string  `json:"criteria"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// EvaluationReport is the scored outcome of a call.
type EvaluationReport struct {
	OverallScore    float64          `json:"overallScore"`
	OverallFeedback string           `json:"overallFeedback"`
	Evaluation      []CriterionScore `json:"evaluation"`
}
