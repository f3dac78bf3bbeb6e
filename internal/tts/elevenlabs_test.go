package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeed_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, speed(0))
	assert.Equal(t, minSpeed, speed(0.5))
	assert.Equal(t, maxSpeed, speed(2))
	assert.Equal(t, 1.1, speed(1.1))
}

func TestElevenLabs_StreamsBodyAndSendsSpeed(t *testing.T) {
	var path, format string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		format = r.URL.Query().Get("output_format")
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write(make([]byte, 9600))
	}))
	defer srv.Close()

	e := NewElevenLabsClient("key", "", nil)
	e.BaseURL = srv.URL
	pcmCh, errCh := e.StreamPCM48k(context.Background(), "Hello there.", "Xb7hH8MSUJpSbSDYk0k2", 1.5)
	total := 0
	for b := range pcmCh {
		total += len(b)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, 9600, total)
	assert.Equal(t, "/v1/text-to-speech/Xb7hH8MSUJpSbSDYk0k2/stream", path)
	assert.Equal(t, "pcm_48000", format)
	settings, ok := body["voice_settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, maxSpeed, settings["speed"])
}

func TestElevenLabs_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewElevenLabsClient("key", "v", nil)
	e.BaseURL = srv.URL
	pcmCh, errCh := e.StreamPCM48k(context.Background(), "hi", "", 1)
	for range pcmCh {
	}
	require.Error(t, <-errCh)
}

func TestElevenLabs_NoKey(t *testing.T) {
	e := NewElevenLabsClient("", "v", nil)
	pcmCh, errCh := e.StreamPCM48k(context.Background(), "hi", "", 1)
	for range pcmCh {
	}
	require.ErrorIs(t, <-errCh, ErrMissingAPIKey)
}
