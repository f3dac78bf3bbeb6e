package tts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
)

const defaultDeepgramModel = "aura-2-thalia-en"

var deepgramVoices = []VoiceInfo{
	{ID: "aura-2-thalia-en", Name: "Thalia", Locale: "en-US", Gender: "female"},
	{ID: "aura-2-andromeda-en", Name: "Andromeda", Locale: "en-US", Gender: "female"},
	{ID: "aura-2-helena-en", Name: "Helena", Locale: "en-US", Gender: "female"},
	{ID: "aura-2-apollo-en", Name: "Apollo", Locale: "en-US", Gender: "male"},
	{ID: "aura-2-arcas-en", Name: "Arcas", Locale: "en-US", Gender: "male"},
	{ID: "aura-2-pandora-en", Name: "Pandora", Locale: "en-GB", Gender: "female"},
	{ID: "aura-2-draco-en", Name: "Draco", Locale: "en-GB", Gender: "male"},
	{ID: "aura-2-theia-en", Name: "Theia", Locale: "en-AU", Gender: "female"},
	{ID: "aura-2-hyperion-en", Name: "Hyperion", Locale: "en-AU", Gender: "male"},
}

// DeepgramClient synthesizes over Deepgram's speak websocket. Aura voices have no
// rate control, so rate is ignored and SupportsRate reports false.
type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
	log        logrus.FieldLogger
}

func NewDeepgramClient(apiKey, model string, log logrus.FieldLogger) *DeepgramClient {
	if model == "" {
		model = defaultDeepgramModel
	}
	return &DeepgramClient{
		apiKey:     apiKey,
		model:      model,
		sampleRate: 48000,
		encoding:   "linear16",
		log:        logging.Or(log).WithField("component", "deepgram"),
	}
}

func (d *DeepgramClient) Voices() []VoiceInfo { return append([]VoiceInfo(nil), deepgramVoices...) }

func (d *DeepgramClient) DefaultVoice() string { return d.model }

func (d *DeepgramClient) SupportsRate() bool { return false }

func (d *DeepgramClient) StreamPCM48k(ctx context.Context, text, voiceID string, _ float64) (<-chan []byte, <-chan error) {
	out := &pcmStream{ch: make(chan []byte, 4096)}
	errCh := make(chan error, 1)

	go func() {
		defer out.close()
		defer close(errCh)

		if d.apiKey == "" {
			errCh <- fmt.Errorf("deepgram: %w", ErrMissingAPIKey)
			return
		}
		if text == "" {
			return
		}
		if voiceID == "" {
			voiceID = d.model
		}

		options := &clientinterfaces.WSSpeakOptions{
			Model:      voiceID,
			Encoding:   d.encoding,
			SampleRate: d.sampleRate,
		}

		var lastRecvUnix int64
		var seenAudio int32

		cb := &speakCallback{onBinary: func(data []byte) error {
			if len(data) == 0 {
				return nil
			}
			atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
			atomic.StoreInt32(&seenAudio, 1)
			b := make([]byte, len(data))
			copy(b, data)
			out.send(ctx, b)
			return nil
		}, onError: func(e *msginterfaces.ErrorResponse) {
			d.log.WithField("error", fmt.Sprintf("%+v", e)).Warn("deepgram error")
		}}

		dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
		if err != nil {
			errCh <- fmt.Errorf("deepgram: create ws client: %w", err)
			return
		}

		stopped := false
		stopClient := func() {
			if !stopped {
				stopped = true
				dg.Stop()
			}
		}
		defer stopClient()

		if ok := dg.Connect(); !ok {
			errCh <- fmt.Errorf("deepgram: connect failed")
			return
		}

		if err := dg.SpeakWithText(text); err != nil {
			errCh <- fmt.Errorf("deepgram: speak text: %w", err)
			return
		}
		if err := dg.Flush(); err != nil {
			d.log.WithError(err).Warn("deepgram flush error")
		}

		// the socket stays open after Flush; treat a quiet window after audio as the end
		idleWindow := 400 * time.Millisecond
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		deadline := time.Now().Add(12 * time.Second)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt32(&seenAudio) == 1 {
					last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
					if time.Since(last) > idleWindow {
						return
					}
				}
				if time.Now().After(deadline) {
					d.log.Warn("deepgram synthesis deadline reached")
					return
				}
			}
		}
	}()

	return out.ch, errCh
}

// pcmStream is the audio channel handed to the caller. The SDK may deliver a
// frame after synthesis has returned, so sends after close are dropped.
type pcmStream struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *pcmStream) send(ctx context.Context, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- b:
	case <-ctx.Done():
	}
}

func (s *pcmStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type speakCallback struct {
	onBinary func([]byte) error
	onError  func(*msginterfaces.ErrorResponse)
}

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(e *msginterfaces.ErrorResponse) error {
	if s.onError != nil && e != nil {
		s.onError(e)
	}
	return nil
}
func (s *speakCallback) UnhandledEvent([]byte) error { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
