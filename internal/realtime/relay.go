package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

// clientRecognizer relays the browser's own speech recognizer. Finalized
// fragments arrive as "recognized" messages; "recognition_end" (or a timeout)
// completes a stopped capture.
type clientRecognizer struct {
	stopTimeout time.Duration

	mu        sync.Mutex
	running   bool
	stopping  bool
	ended     bool
	fragments []string
	onResult  func(string)
	timer     *time.Timer
}

func newClientRecognizer(stopTimeout time.Duration) *clientRecognizer {
	return &clientRecognizer{stopTimeout: stopTimeout}
}

func (r *clientRecognizer) Start(_ context.Context, onResult func(string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.running = true
	r.stopping = false
	r.ended = false
	r.fragments = nil
	r.onResult = onResult
	return nil
}

// Recognized appends a finalized fragment from the browser.
func (r *clientRecognizer) Recognized(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.fragments = append(r.fragments, text)
	}
}

func (r *clientRecognizer) Stop() {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return
	}
	r.stopping = true
	if r.ended {
		r.mu.Unlock()
		r.finish()
		return
	}
	r.timer = time.AfterFunc(r.stopTimeout, r.finish)
	r.mu.Unlock()
}

// End reports that the browser recognizer has delivered its last fragment.
// It may arrive before Stop, since the browser stops listening on its own.
func (r *clientRecognizer) End() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.ended = true
	stopping := r.stopping
	r.mu.Unlock()
	if stopping {
		r.finish()
	}
}

func (r *clientRecognizer) finish() {
	r.mu.Lock()
	if !r.running || !r.stopping {
		r.mu.Unlock()
		return
	}
	cb := r.onResult
	text := strings.Join(r.fragments, " ")
	r.reset()
	r.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (r *clientRecognizer) Detach() {
	r.mu.Lock()
	r.reset()
	r.mu.Unlock()
}

func (r *clientRecognizer) reset() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.running = false
	r.stopping = false
	r.ended = false
	r.fragments = nil
	r.onResult = nil
}

// clientSpeaker asks the browser to speak and follows its progress reports.
type clientSpeaker struct {
	send func(outbound)

	mu         sync.Mutex
	id         uint64
	onProgress func(int)
	onDone     func()
}

func newClientSpeaker(send func(outbound)) *clientSpeaker {
	return &clientSpeaker{send: send}
}

func (s *clientSpeaker) Speak(_ context.Context, text string, voice domain.Voice, onProgress func(int), onDone func()) {
	s.Cancel()
	s.mu.Lock()
	s.id++
	id := s.id
	s.onProgress = onProgress
	s.onDone = onDone
	s.mu.Unlock()
	s.send(outbound{Type: msgSpeak, ID: id, Text: text, Voice: &voice})
}

func (s *clientSpeaker) Cancel() {
	s.mu.Lock()
	id, done := s.id, s.onDone
	s.onDone, s.onProgress = nil, nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	s.send(outbound{Type: msgSpeakCancel, ID: id})
	done()
}

// Progress forwards a browser progress report for utterance id.
func (s *clientSpeaker) Progress(id uint64, pct int) {
	s.mu.Lock()
	cb := s.onProgress
	if id != s.id {
		cb = nil
	}
	s.mu.Unlock()
	if cb != nil {
		cb(max(0, min(pct, 100)))
	}
}

// End completes utterance id.
func (s *clientSpeaker) End(id uint64) {
	s.mu.Lock()
	if id != s.id || s.onDone == nil {
		s.mu.Unlock()
		return
	}
	done := s.onDone
	s.onDone, s.onProgress = nil, nil
	s.mu.Unlock()
	done()
}
