// Package tts synthesizes the persona's replies and plays them into a PCM sink.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrMissingAPIKey is reported on the error channel when a provider has no credentials.
var ErrMissingAPIKey = errors.New("tts: api key missing")

// Synthesizer streams 48 kHz mono PCM16LE audio for a piece of text.
// Both channels are closed when synthesis ends.
type Synthesizer interface {
	StreamPCM48k(ctx context.Context, text, voiceID string, rate float64) (<-chan []byte, <-chan error)
	Voices() []VoiceInfo
	DefaultVoice() string
}

// RateControl is implemented by synthesizers that can say whether they honour
// the rate passed to StreamPCM48k.
type RateControl interface {
	SupportsRate() bool
}

// SupportsRate reports whether s applies the requested speech rate.
func SupportsRate(s Synthesizer) bool {
	rc, ok := s.(RateControl)
	return ok && rc.SupportsRate()
}

// PCMSink receives synthesized audio on its way to the listener.
type PCMSink interface {
	WritePCM(p []byte)
	// FlushTail pads and emits any partial frame.
	FlushTail()
	// Reset drops queued audio immediately.
	Reset()
	// Drain blocks until queued audio has been played out.
	Drain(ctx context.Context) error
}

// NewSynthesizer picks the provider named by provider ("deepgram" or "elevenlabs").
func NewSynthesizer(provider, deepgramKey, deepgramModel, elevenLabsKey, elevenLabsVoice string, log logrus.FieldLogger) (Synthesizer, error) {
	switch provider {
	case "", "deepgram":
		return NewDeepgramClient(deepgramKey, deepgramModel, log), nil
	case "elevenlabs":
		return NewElevenLabsClient(elevenLabsKey, elevenLabsVoice, log), nil
	default:
		return nil, fmt.Errorf("unknown TTS_PROVIDER %q", provider)
	}
}
