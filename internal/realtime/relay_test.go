package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

func TestClientRecognizer_JoinsFragmentsOnEnd(t *testing.T) {
	r := newClientRecognizer(time.Hour)
	got := make(chan string, 2)
	require.NoError(t, r.Start(context.Background(), func(s string) { got <- s }))
	require.NoError(t, r.Start(context.Background(), func(string) { t.Errorf("second start replaced callback") }))
	r.Recognized("hello")
	r.Recognized("  ")
	r.Recognized("there")
	r.Stop()
	r.Recognized("late words")
	r.End()
	r.End()

	select {
	case s := <-got:
		assert.Equal(t, "hello there late words", s)
	case <-time.After(time.Second):
		t.Fatalf("no result")
	}
	assert.Len(t, got, 0)
}

func TestClientRecognizer_EndBeforeStop(t *testing.T) {
	r := newClientRecognizer(time.Hour)
	got := make(chan string, 1)
	require.NoError(t, r.Start(context.Background(), func(s string) { got <- s }))
	r.Recognized("quick answer")
	r.End()
	r.Stop()
	select {
	case s := <-got:
		assert.Equal(t, "quick answer", s)
	case <-time.After(time.Second):
		t.Fatalf("stop after end should complete immediately")
	}
}

func TestClientRecognizer_StopTimesOut(t *testing.T) {
	r := newClientRecognizer(5 * time.Millisecond)
	got := make(chan string, 1)
	require.NoError(t, r.Start(context.Background(), func(s string) { got <- s }))
	r.Stop()
	select {
	case s := <-got:
		assert.Empty(t, s)
	case <-time.After(time.Second):
		t.Fatalf("stop never completed")
	}
}

func TestClientRecognizer_DetachSuppressesResult(t *testing.T) {
	r := newClientRecognizer(5 * time.Millisecond)
	got := make(chan string, 1)
	require.NoError(t, r.Start(context.Background(), func(s string) { got <- s }))
	r.Recognized("words")
	r.Stop()
	r.Detach()
	select {
	case s := <-got:
		t.Fatalf("detached recognizer emitted %q", s)
	case <-time.After(30 * time.Millisecond):
	}
}

type sentLog struct {
	mu   sync.Mutex
	msgs []outbound
}

func (l *sentLog) send(m outbound) {
	l.mu.Lock()
	l.msgs = append(l.msgs, m)
	l.mu.Unlock()
}

func TestClientSpeaker_ProgressAndEnd(t *testing.T) {
	log := &sentLog{}
	s := newClientSpeaker(log.send)
	var pcts []int
	dones := 0
	s.Speak(context.Background(), "Hello.", domain.Voice{Locale: "en-GB"}, func(p int) { pcts = append(pcts, p) }, func() { dones++ })

	require.Len(t, log.msgs, 1)
	assert.Equal(t, msgSpeak, log.msgs[0].Type)
	assert.Equal(t, "Hello.", log.msgs[0].Text)
	id := log.msgs[0].ID

	s.Progress(id, 40)
	s.Progress(id+7, 90)
	s.Progress(id, 250)
	s.End(id + 1)
	s.End(id)
	s.End(id)
	s.Cancel()

	assert.Equal(t, []int{40, 100}, pcts)
	assert.Equal(t, 1, dones)
	assert.Len(t, log.msgs, 1, "cancel after end sends nothing")
}

func TestClientSpeaker_SpeakCancelsPrevious(t *testing.T) {
	log := &sentLog{}
	s := newClientSpeaker(log.send)
	firstDone, secondDone := 0, 0
	s.Speak(context.Background(), "One.", domain.Voice{}, nil, func() { firstDone++ })
	s.Speak(context.Background(), "Two.", domain.Voice{}, nil, func() { secondDone++ })

	require.Len(t, log.msgs, 3)
	assert.Equal(t, msgSpeakCancel, log.msgs[1].Type)
	assert.Equal(t, 1, firstDone)
	assert.Equal(t, 0, secondDone)

	s.End(log.msgs[2].ID)
	assert.Equal(t, 1, secondDone)
}
