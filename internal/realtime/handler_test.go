package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/agent"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/llm"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/tts"
)

type countingCoach struct {
	*llm.Coach
	evaluations atomic.Int32
}

func (c *countingCoach) Evaluate(ctx context.Context, t domain.Transcript, p domain.Persona, scenario, criteria, country string) (domain.EvaluationReport, error) {
	c.evaluations.Add(1)
	return c.Coach.Evaluate(ctx, t, p, scenario, criteria, country)
}

type fakeSynth struct{}

func (fakeSynth) Voices() []tts.VoiceInfo { return nil }
func (fakeSynth) DefaultVoice() string    { return "v" }
func (fakeSynth) StreamPCM48k(ctx context.Context, text, voiceID string, rate float64) (<-chan []byte, <-chan error) {
	pcm := make(chan []byte, 2)
	errc := make(chan error)
	pcm <- make([]byte, frameBytes)
	pcm <- make([]byte, frameBytes/2)
	close(pcm)
	close(errc)
	return pcm, errc
}

type testClient struct {
	t      *testing.T
	ws     *websocket.Conn
	binary int
}

func dial(t *testing.T, opts Options) (*testClient, *countingCoach) {
	t.Helper()
	coach := &countingCoach{Coach: llm.NewCoach(llm.MockClient{}, nil)}
	opts.Coach = coach
	opts.Logger = logging.Discard()
	srv := httptest.NewServer(NewHandler(opts))
	t.Cleanup(srv.Close)
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &testClient{t: t, ws: ws}, coach
}

func (c *testClient) send(m map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(m))
}

// next reads until a text message of the given type satisfying match arrives.
func (c *testClient) next(typ string, match func(outbound) bool) outbound {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		mt, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", typ)
		if mt == websocket.BinaryMessage {
			c.binary++
			continue
		}
		var m outbound
		require.NoError(c.t, json.Unmarshal(data, &m))
		if m.Type == typ && (match == nil || match(m)) {
			return m
		}
	}
}

func (c *testClient) state(want agent.State) agent.Snapshot {
	c.t.Helper()
	m := c.next(msgState, func(m outbound) bool { return m.State != nil && m.State.State == want })
	return *m.State
}

var startMsg = map[string]any{
	"type":     "start",
	"persona":  map[string]any{"name": "Amaya", "age": 34, "personality": "Curious"},
	"settings": map[string]any{"scenario": "home buying", "country": "United Kingdom", "speechRate": 1},
	"criteria": "Rapport Building",
}

func TestHandler_ClientModesFullCall(t *testing.T) {
	c, coach := dial(t, Options{})
	c.send(startMsg)

	speak := c.next(msgSpeak, nil)
	require.NotNil(t, speak.Voice)
	assert.Equal(t, "en-GB", speak.Voice.Locale)
	c.send(map[string]any{"type": "speech_progress", "id": speak.ID, "progress": 50})
	c.send(map[string]any{"type": "speech_end", "id": speak.ID})
	c.state(agent.StateAwaitingRecording)

	c.send(map[string]any{"type": "record"})
	snap := c.state(agent.StateRecording)
	assert.True(t, snap.Listening)
	c.send(map[string]any{"type": "recognized", "text": "What is your budget?"})
	c.send(map[string]any{"type": "stop"})
	c.send(map[string]any{"type": "recognition_end"})
	snap = c.state(agent.StateReviewingDraft)
	assert.Equal(t, "What is your budget?", snap.Draft)

	c.send(map[string]any{"type": "submit"})
	speak = c.next(msgSpeak, nil)
	assert.Contains(t, speak.Text, "What is your budget?")
	c.send(map[string]any{"type": "speech_end", "id": speak.ID})
	c.state(agent.StateAwaitingRecording)

	c.send(map[string]any{"type": "end"})
	ended := c.next(msgEnded, nil)
	require.Len(t, ended.Transcript, 3)
	assert.Equal(t, domain.SpeakerTrainee, ended.Transcript[1].Speaker)

	rep := c.next(msgReport, nil)
	require.NotNil(t, rep.Report)
	assert.Contains(t, rep.Text, "AI Persona Simulator - Performance Report")
	assert.True(t, strings.HasPrefix(rep.FileName, "performance-report-"))
	assert.Equal(t, int32(1), coach.evaluations.Load())
}

func TestHandler_ServerPlaybackStreamsPacedAudio(t *testing.T) {
	c, _ := dial(t, Options{Synthesizer: fakeSynth{}})
	c.send(startMsg)

	start := c.next(msgAudioStart, nil)
	assert.Equal(t, 48000, start.SampleRate)
	c.next(msgAudioEnd, nil)
	c.state(agent.StateAwaitingRecording)
	assert.GreaterOrEqual(t, c.binary, 2+tailFrames)
}

func TestHandler_RejectsCommandsBeforeStart(t *testing.T) {
	c, _ := dial(t, Options{})
	c.send(map[string]any{"type": "record"})
	m := c.next(msgError, nil)
	assert.Equal(t, "no call in progress", m.Error)

	c.send(map[string]any{"type": "start"})
	m = c.next(msgError, nil)
	assert.Contains(t, m.Error, "persona")
}

func TestHandler_DisconnectSkipsEvaluation(t *testing.T) {
	c, coach := dial(t, Options{})
	c.send(startMsg)
	c.next(msgSpeak, nil)
	_ = c.ws.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), coach.evaluations.Load())
}

func TestHandler_SecondStartWhileActiveIsRejected(t *testing.T) {
	c, _ := dial(t, Options{})
	c.send(startMsg)
	c.next(msgSpeak, nil)
	c.send(startMsg)
	m := c.next(msgError, nil)
	assert.Contains(t, m.Error, "already in progress")
}

func TestOutbox_PushNeverBlocksAndCoalescesState(t *testing.T) {
	o := newOutbox()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			o.push(wsMessage{msg: outbound{Type: msgState, State: &agent.Snapshot{TimeLeft: i}}})
		}
		o.push(wsMessage{msg: outbound{Type: msgAudioStart}})
		o.push(wsMessage{frame: []byte{1}})
		o.push(wsMessage{msg: outbound{Type: msgState, State: &agent.Snapshot{TimeLeft: -1}}})
		o.push(wsMessage{msg: outbound{Type: msgAudioEnd}})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("push blocked without a writer")
	}

	q := o.drain()
	require.Len(t, q, 5)
	assert.Equal(t, 999, q[0].msg.State.TimeLeft, "queued snapshots collapse to the latest")
	assert.Equal(t, msgAudioStart, q[1].msg.Type)
	assert.Equal(t, []byte{1}, q[2].frame)
	assert.Equal(t, -1, q[3].msg.State.TimeLeft)
	assert.Equal(t, msgAudioEnd, q[4].msg.Type)
	assert.Empty(t, o.drain())
}

func TestCallConn_SendDoesNotWaitForTheSocket(t *testing.T) {
	// no writer goroutine runs, as with a browser that stopped reading
	c := &callConn{out: newOutbox(), log: logging.Discard()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			c.send(outbound{Type: msgSpeak, ID: uint64(i)})
		}
		_ = c.WriteFrame(make([]byte, frameBytes))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("send blocked on the connection")
	}
	assert.Len(t, c.out.drain(), 101)
}
