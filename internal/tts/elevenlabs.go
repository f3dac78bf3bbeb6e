package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"
	elevenLabsModel   = "eleven_flash_v2_5"
	minSpeed          = 0.7
	maxSpeed          = 1.2
)

var elevenLabsVoices = []VoiceInfo{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Locale: "en-US", Gender: "female"},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Locale: "en-US", Gender: "male"},
	{ID: "Xb7hH8MSUJpSbSDYk0k2", Name: "Alice", Locale: "en-GB", Gender: "female"},
	{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Locale: "en-GB", Gender: "male"},
	{ID: "IKne3meq5aSn9XLyUdCD", Name: "Charlie", Locale: "en-AU", Gender: "male"},
}

// ElevenLabsClient streams PCM over the HTTP text-to-speech stream endpoint.
type ElevenLabsClient struct {
	APIKey     string
	VoiceID    string
	BaseURL    string
	HTTPClient *http.Client
	log        logrus.FieldLogger
}

func NewElevenLabsClient(apiKey, voiceID string, log logrus.FieldLogger) *ElevenLabsClient {
	if voiceID == "" {
		voiceID = elevenLabsVoices[0].ID
	}
	return &ElevenLabsClient{
		APIKey:     apiKey,
		VoiceID:    voiceID,
		BaseURL:    elevenLabsBaseURL,
		HTTPClient: &http.Client{Timeout: 0},
		log:        logging.Or(log).WithField("component", "elevenlabs"),
	}
}

func (e *ElevenLabsClient) Voices() []VoiceInfo { return append([]VoiceInfo(nil), elevenLabsVoices...) }

func (e *ElevenLabsClient) DefaultVoice() string { return e.VoiceID }

func (e *ElevenLabsClient) SupportsRate() bool { return true }

func (e *ElevenLabsClient) StreamPCM48k(ctx context.Context, text, voiceID string, rate float64) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 4096)
	errCh := make(chan error, 1)
	go func() {
		defer close(pcmCh)
		defer close(errCh)
		if voiceID == "" {
			voiceID = e.VoiceID
		}
		if e.APIKey == "" || voiceID == "" {
			errCh <- fmt.Errorf("elevenlabs: %w", ErrMissingAPIKey)
			return
		}
		if strings.TrimSpace(text) == "" {
			return
		}
		if err := e.httpStream(ctx, text, voiceID, rate, pcmCh); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	return pcmCh, errCh
}

// speed maps a speech rate onto the range ElevenLabs accepts.
func speed(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	if rate < minSpeed {
		return minSpeed
	}
	if rate > maxSpeed {
		return maxSpeed
	}
	return rate
}

func (e *ElevenLabsClient) httpStream(ctx context.Context, text, voiceID string, rate float64, pcmCh chan<- []byte) error {
	u, err := url.Parse(strings.TrimRight(e.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("output_format", "pcm_48000")
	// 0..4, lower trades quality for latency
	q.Set("optimize_streaming_latency", "2")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": elevenLabsModel,
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
			"speed":             speed(rate),
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{80, 120, 160, 200},
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs http stream error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}

	bufChunk := make([]byte, 4096)
	first := true
	for {
		n, rerr := resp.Body.Read(bufChunk)
		if n > 0 {
			if first {
				e.log.WithField("bytes", n).Debug("receiving audio stream")
				first = false
			}
			out := make([]byte, n)
			copy(out, bufChunk[:n])
			select {
			case pcmCh <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return fmt.Errorf("elevenlabs http read error: %w", rerr)
		}
	}
}
