package realtime

import (
	"encoding/json"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/agent"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

// Client to server message types.
const (
	msgStart          = "start"
	msgRecord         = "record"
	msgStop           = "stop"
	msgRerecord       = "rerecord"
	msgDraft          = "draft"
	msgSubmit         = "submit"
	msgHint           = "hint"
	msgDismissHint    = "dismiss_hint"
	msgEnd            = "end"
	msgRecognized     = "recognized"
	msgRecognitionEnd = "recognition_end"
	msgSpeechProgress = "speech_progress"
	msgSpeechEnd      = "speech_end"
)

// Server to client message types.
const (
	msgState       = "state"
	msgAudioStart  = "audio_start"
	msgAudioEnd    = "audio_end"
	msgSpeak       = "speak"
	msgSpeakCancel = "speak_cancel"
	msgEnded       = "ended"
	msgReport      = "report"
	msgError       = "error"
)

// inbound is any client text frame; fields are populated per type.
type inbound struct {
	Type string `json:"type"`

	// start
	Persona    *domain.Persona      `json:"persona,omitempty"`
	Settings   *domain.CallSettings `json:"settings,omitempty"`
	Criteria   string               `json:"criteria,omitempty"`
	Transcript domain.Transcript    `json:"transcript,omitempty"`

	// draft, recognized
	Text string `json:"text,omitempty"`

	// speech_progress, speech_end
	ID       uint64 `json:"id,omitempty"`
	Progress int    `json:"progress,omitempty"`
}

type outbound struct {
	Type string `json:"type"`

	State *agent.Snapshot `json:"state,omitempty"`

	SampleRate int `json:"sampleRate,omitempty"`

	ID    uint64        `json:"id,omitempty"`
	Text  string        `json:"text,omitempty"`
	Voice *domain.Voice `json:"voice,omitempty"`

	Transcript domain.Transcript        `json:"transcript,omitempty"`
	Report     *domain.EvaluationReport `json:"report,omitempty"`
	FileName   string                   `json:"fileName,omitempty"`

	Error string `json:"error,omitempty"`
}

func decodeInbound(data []byte) (inbound, error) {
	var m inbound
	err := json.Unmarshal(data, &m)
	return m, err
}
