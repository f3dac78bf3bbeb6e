package agent

import "github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"

// State is the call's position in the turn-taking protocol.
type State string

const (
	StateIdle              State = "idle"
	StateAgentSpeaking     State = "agent_speaking"
	StateAwaitingRecording State = "awaiting_recording"
	StateRecording         State = "recording"
	StateReviewingDraft    State = "reviewing_draft"
	StateSendingToAgent    State = "sending_to_agent"
	// StateTranscribingForEnd waits for the recognizer's end-of-session signal after Stop.
	StateTranscribingForEnd State = "transcribing_for_end"
	StateEnding             State = "ending"
)

// trainee-turn states are the only ones in which a hint may be requested.
func (s State) traineeTurn() bool {
	return s == StateAwaitingRecording || s == StateReviewingDraft
}

// Status is the one-line text shown next to the call controls.
func (s State) Status(draft string) string {
	switch s {
	case StateAgentSpeaking:
		return "AI is speaking..."
	case StateRecording:
		return `Recording... Click "Stop" when finished.`
	case StateSendingToAgent:
		return "AI is thinking..."
	case StateTranscribingForEnd:
		return "Processing audio..."
	case StateEnding:
		return "Finalizing call..."
	case StateAwaitingRecording:
		return "Your turn to speak."
	case StateReviewingDraft:
		if draft == "" {
			return "No speech detected."
		}
		return "Review your response below."
	case StateIdle:
		return "Call has not started."
	default:
		return ""
	}
}

// Snapshot is a read-only view of a call, safe to hand to other goroutines.
type Snapshot struct {
	CallID     string            `json:"callId"`
	State      State             `json:"state"`
	Status     string            `json:"status"`
	Active     bool              `json:"active"`
	Finished   bool              `json:"finished"`
	Transcript domain.Transcript `json:"transcript"`
	Draft      string            `json:"draft"`
	Hint       string            `json:"hint,omitempty"`
	HintBusy   bool              `json:"hintLoading"`
	Notice     string            `json:"notice,omitempty"`
	// TimeLeft is in seconds; -1 means no limit.
	TimeLeft         int  `json:"timeLeft"`
	Listening        bool `json:"listening"`
	SpeakingProgress int  `json:"speakingProgress"`
	EndPending       bool `json:"endPending"`
}
