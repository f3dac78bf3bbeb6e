// Package transcript turns trainee microphone audio into text.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
)

// ErrMissingAPIKey is returned by Start when no AssemblyAI key is configured.
var ErrMissingAPIKey = errors.New("transcript: AssemblyAI API key is empty")

const (
	defaultStreamingURL = "wss://streaming.assemblyai.com/v3/ws"
	// defaultStopTimeout bounds how long Stop waits for Termination.
	defaultStopTimeout = 3 * time.Second
	sampleRate         = 16000
)

// AssemblyAI message types
type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type          string `json:"type"`
	TurnOrder     int    `json:"turn_order"`
	Transcript    string `json:"transcript"`
	EndOfTurn     bool   `json:"end_of_turn"`
	TurnFormatted bool   `json:"turn_is_formatted"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Recognizer captures one utterance at a time over AssemblyAI's streaming API.
// Audio arrives through FeedPCM16KLE; the text is delivered once per session
// after Stop.
type Recognizer struct {
	APIKey      string
	Locale      string
	URL         string
	StopTimeout time.Duration

	log    logrus.FieldLogger
	dialer websocket.Dialer

	mu   sync.Mutex
	sess *recognition
}

func NewRecognizer(apiKey, locale string, log logrus.FieldLogger) *Recognizer {
	return &Recognizer{
		APIKey:      apiKey,
		Locale:      locale,
		URL:         defaultStreamingURL,
		StopTimeout: defaultStopTimeout,
		log:         logging.Or(log).WithFields(logrus.Fields{"component": "assemblyai", "locale": locale}),
		dialer:      websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type recognition struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	audio    chan []byte
	done     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	onResult func(string)

	mu       sync.Mutex
	turns    map[int]string
	stopping bool
	emitted  bool
}

// Start opens a streaming session. Starting while one is open is a no-op.
func (r *Recognizer) Start(ctx context.Context, onResult func(text string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess != nil {
		r.log.Debug("recognizer already running")
		return nil
	}
	if r.APIKey == "" {
		return ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("sample_rate", fmt.Sprint(sampleRate))
	params.Set("encoding", "pcm_s16le")
	params.Set("format_turns", "true")
	if !strings.HasPrefix(strings.ToLower(r.Locale), "en") {
		params.Set("speech_model", "universal-streaming-multilingual")
	}
	wsURL := r.URL + "?" + params.Encode()
	headers := map[string][]string{"Authorization": {r.APIKey}}

	conn, resp, err := r.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			r.log.WithField("status", resp.StatusCode).Warn("AssemblyAI connection failed")
		}
		return fmt.Errorf("failed to connect to AssemblyAI: %w", err)
	}

	sess := &recognition{
		conn:     conn,
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		onResult: onResult,
		turns:    make(map[int]string),
	}
	r.sess = sess
	go r.readLoop(sess)
	go r.writeLoop(sess)
	go func() {
		select {
		case <-ctx.Done():
			r.detach(sess)
		case <-sess.quit:
		}
	}()
	r.log.Debug("recognition started")
	return nil
}

// FeedPCM16KLE forwards 16 kHz mono PCM16LE audio. Audio outside a session is dropped.
func (r *Recognizer) FeedPCM16KLE(pcm []byte) {
	r.mu.Lock()
	sess := r.sess
	r.mu.Unlock()
	if sess == nil || len(pcm) == 0 {
		return
	}
	sess.mu.Lock()
	stopping := sess.stopping
	sess.mu.Unlock()
	if stopping {
		return
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	select {
	case sess.audio <- buf:
	default:
		r.log.Debug("audio buffer full, dropping packet")
	}
}

// Stop asks AssemblyAI to finalize. onResult fires once with the joined turns
// after Termination, a closed socket, or StopTimeout.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	sess := r.sess
	r.sess = nil
	r.mu.Unlock()
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.stopping = true
	sess.mu.Unlock()

	sess.writeJSON(map[string]string{"type": "ForceEndpoint"})
	sess.writeJSON(map[string]string{"type": "Terminate"})

	go func() {
		timer := time.NewTimer(r.StopTimeout)
		defer timer.Stop()
		select {
		case <-sess.done:
		case <-timer.C:
			r.log.Warn("AssemblyAI termination timed out")
		}
		sess.close()
		r.emit(sess)
	}()
}

// Detach drops the active session without reporting a result.
func (r *Recognizer) Detach() {
	r.mu.Lock()
	sess := r.sess
	r.sess = nil
	r.mu.Unlock()
	if sess != nil {
		r.detach(sess)
	}
}

func (r *Recognizer) detach(sess *recognition) {
	r.mu.Lock()
	if r.sess == sess {
		r.sess = nil
	}
	r.mu.Unlock()
	sess.mu.Lock()
	sess.emitted = true
	sess.mu.Unlock()
	sess.close()
}

func (r *Recognizer) emit(sess *recognition) {
	sess.mu.Lock()
	if sess.emitted {
		sess.mu.Unlock()
		return
	}
	sess.emitted = true
	text := joinTurns(sess.turns)
	sess.mu.Unlock()
	r.log.WithField("chars", len(text)).Debug("recognition finished")
	if sess.onResult != nil {
		sess.onResult(text)
	}
}

func (s *recognition) writeJSON(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_ = s.conn.WriteJSON(v)
}

func (s *recognition) close() {
	s.quitOnce.Do(func() {
		close(s.quit)
		_ = s.conn.Close()
	})
}

func (r *Recognizer) readLoop(sess *recognition) {
	defer close(sess.done)
	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			select {
			case <-sess.quit:
			default:
				r.log.WithError(err).Debug("AssemblyAI read ended")
			}
			return
		}
		if r.handleMessage(sess, message) {
			return
		}
	}
}

// handleMessage applies one server message and reports whether the session terminated.
func (r *Recognizer) handleMessage(sess *recognition, message []byte) bool {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		r.log.WithError(err).Warn("error unmarshaling AssemblyAI message")
		return false
	}
	switch base.Type {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			r.log.WithFields(logrus.Fields{"session_id": msg.ID, "expires_at": time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339)}).Debug("AssemblyAI session began")
		}
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			r.log.WithError(err).Warn("error unmarshaling Turn message")
			return false
		}
		sess.mu.Lock()
		// unformatted end-of-turn text is superseded by the formatted one when it arrives
		if prev, ok := sess.turns[msg.TurnOrder]; !ok || msg.TurnFormatted || prev == "" || !msg.EndOfTurn {
			sess.turns[msg.TurnOrder] = msg.Transcript
		}
		sess.mu.Unlock()
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			r.log.WithFields(logrus.Fields{"audio_s": msg.AudioDurationSeconds, "session_s": msg.SessionDurationSeconds}).Debug("AssemblyAI session terminated")
		}
		return true
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			r.log.WithField("error", msg.Error).Warn("AssemblyAI error")
		}
	default:
		r.log.WithField("type", base.Type).Debug("unknown AssemblyAI message type")
	}
	return false
}

func (r *Recognizer) writeLoop(sess *recognition) {
	for {
		select {
		case <-sess.quit:
			return
		case <-sess.done:
			return
		case pcm := <-sess.audio:
			sess.writeMu.Lock()
			_ = sess.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			err := sess.conn.WriteMessage(websocket.BinaryMessage, pcm)
			sess.writeMu.Unlock()
			if err != nil {
				r.log.WithError(err).Debug("error sending audio data")
				return
			}
		}
	}
}

// joinTurns concatenates turn texts in turn order, skipping blanks.
func joinTurns(turns map[int]string) string {
	orders := make([]int, 0, len(turns))
	for k := range turns {
		orders = append(orders, k)
	}
	sort.Ints(orders)
	parts := make([]string, 0, len(orders))
	for _, k := range orders {
		if t := strings.TrimSpace(turns[k]); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
