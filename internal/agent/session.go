package agent

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/prompt"
)

const (
	noticeAgentFailed   = "The persona could not respond. Please try recording again."
	noticeOpeningFailed = "The call could not be started by the persona. You can speak first."
	noticeNoSpeech      = "No speech detected."
	noticeEmptySubmit   = "Nothing to send yet. Record your response first."
	noticeCaptureFailed = "Recording is unavailable right now."
	hintApology         = "Sorry, the coach is busy. Please try again in a moment."
)

// CallConfig is fixed for the lifetime of a call.
type CallConfig struct {
	CallID   string
	Persona  domain.Persona
	Settings domain.CallSettings
	Locale   string
	// History seeds a follow-up call with the previous call's transcript.
	History domain.Transcript
}

// Options wires a Session to its adapters and observers.
type Options struct {
	Chats    ChatFactory
	Hinter   Hinter
	Recorder Recorder
	Speaker  Speaker
	Logger   logrus.FieldLogger

	// OnChange receives a snapshot after every event that changed one. It runs on
	// the session goroutine and must not block.
	OnChange func(Snapshot)
	// OnEnd receives the final transcript exactly once. It runs on the session goroutine.
	OnEnd func(domain.Transcript)

	// TickInterval is one countdown step; defaults to one second.
	TickInterval time.Duration
	// RequestTimeout bounds each agent exchange; defaults to 60s.
	RequestTimeout time.Duration

	// ticks replaces the countdown ticker in tests.
	ticks <-chan time.Time
}

// Session orchestrates one training call: agent turns, playback, trainee capture,
// hints and the countdown. All state is owned by a single goroutine; every public
// method posts an event and returns immediately.
type Session struct {
	cfg  CallConfig
	opts Options
	log  logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	box    mailbox
	done   chan struct{}

	// owned by the session goroutine
	state      State
	started    bool
	active     bool
	finished   bool
	endPending bool
	transcript domain.Transcript
	draft      string
	notice     string
	listening  bool
	progress   int
	timeLeft   int
	ticker     *time.Ticker
	tickC      <-chan time.Time

	chat      Chat
	reqSeq    uint64
	reqCancel context.CancelFunc

	playSeq  uint64
	speaking bool

	capSeq     uint64
	capturing  bool
	capStarted bool
	stopOnOpen bool
	capOpen    *captureOpen

	hint       string
	hintBusy   bool
	hintSeq    uint64
	hintCancel context.CancelFunc

	lastSent *Snapshot

	mu     sync.Mutex
	latest Snapshot
	final  domain.Transcript
}

// NewSession constructs a Session and starts its event loop. The call itself
// begins with Start.
func NewSession(ctx context.Context, cfg CallConfig, opts Options) *Session {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Speaker == nil {
		opts.Speaker = nopSpeaker{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:        cfg,
		opts:       opts,
		log:        logging.Or(opts.Logger).WithFields(logrus.Fields{"component": "call", "call_id": cfg.CallID}),
		ctx:        sctx,
		cancel:     cancel,
		box:        newMailbox(),
		done:       make(chan struct{}),
		state:      StateIdle,
		transcript: cfg.History.Clone(),
		timeLeft:   -1,
	}
	s.latest = s.snapshot()
	go s.loop()
	return s
}

// Start initializes the call and requests the persona's opening turn.
func (s *Session) Start() { s.post(s.onStart) }

// StartRecording opens a capture session for the trainee's turn.
func (s *Session) StartRecording() { s.post(s.onStartRecording) }

// StopRecording asks capture to finish; the draft arrives with the capture result.
func (s *Session) StopRecording() { s.post(s.onStopRecording) }

// Rerecord discards the current draft and records again.
func (s *Session) Rerecord() { s.post(s.onRerecord) }

// EditDraft replaces the draft text while it is under review.
func (s *Session) EditDraft(text string) { s.post(func() { s.onEditDraft(text) }) }

// Submit sends the reviewed draft to the persona. Blank drafts are rejected.
func (s *Session) Submit() { s.post(s.onSubmit) }

// EndCall finishes the call, waiting for in-flight capture or agent work as needed.
func (s *Session) EndCall() { s.post(func() { s.onEnd("manual") }) }

// RequestHint asks the coach for a suggested question.
func (s *Session) RequestHint() { s.post(s.onRequestHint) }

// DismissHint clears the hint and abandons any pending hint request.
func (s *Session) DismissHint() { s.post(s.onDismissHint) }

// Close tears the session down without finalizing the call.
func (s *Session) Close() { s.cancel() }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the final transcript, or nil if the call was closed without finishing.
func (s *Session) Result() domain.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return nil
	}
	return s.final.Clone()
}

// Snapshot returns the state as of the last handled event.
func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	s.post(func() { reply <- s.snapshot() })
	select {
	case snap := <-reply:
		return snap
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.latest
	}
}

func (s *Session) post(ev func()) { s.box.push(ev) }

func (s *Session) loop() {
	defer close(s.done)
	defer s.teardown()
	for {
		tick := s.tickC
		select {
		case <-s.ctx.Done():
			s.log.Debug("call closed")
			return
		case <-tick:
			s.onTick()
		case <-s.box.signal:
			for _, ev := range s.box.drain() {
				ev()
				if s.finished {
					break
				}
			}
		}
		s.publish()
		if s.finished {
			return
		}
	}
}

func (s *Session) publish() {
	snap := s.snapshot()
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
	if s.lastSent != nil && reflect.DeepEqual(*s.lastSent, snap) {
		return
	}
	s.lastSent = &snap
	if s.opts.OnChange != nil {
		s.opts.OnChange(snap)
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		CallID:           s.cfg.CallID,
		State:            s.state,
		Status:           s.state.Status(s.draft),
		Active:           s.active,
		Finished:         s.finished,
		Transcript:       s.transcript.Clone(),
		Draft:            s.draft,
		Hint:             s.hint,
		HintBusy:         s.hintBusy,
		Notice:           s.notice,
		TimeLeft:         s.timeLeft,
		Listening:        s.listening,
		SpeakingProgress: s.progress,
		EndPending:       s.endPending,
	}
}

func (s *Session) setState(next State) {
	if s.state != next {
		s.log.WithFields(logrus.Fields{"from": s.state, "to": next}).Debug("state change")
	}
	s.state = next
}

func (s *Session) onStart() {
	if s.started || s.finished {
		return
	}
	s.started = true
	s.active = true
	if limit := s.cfg.Settings.TimeLimit; limit > 0 {
		s.timeLeft = limit
		if s.opts.ticks != nil {
			s.tickC = s.opts.ticks
		} else {
			s.ticker = time.NewTicker(s.opts.TickInterval)
			s.tickC = s.ticker.C
		}
	}
	opening := prompt.OpeningMessage
	if len(s.transcript) > 0 {
		opening = prompt.FollowUpMessage
	}
	s.log.WithField("follow_up", len(s.transcript) > 0).Info("call started")
	s.setState(StateSendingToAgent)
	s.exchange(opening, s.transcript.Clone(), true)
}

// exchange sends text to the persona on a worker goroutine and posts the reply back.
// history seeds the chat if none is open yet and must not already contain text.
func (s *Session) exchange(text string, history domain.Transcript, opening bool) {
	s.reqSeq++
	seq := s.reqSeq
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RequestTimeout)
	s.reqCancel = cancel
	chat := s.chat
	go func() {
		defer cancel()
		if chat == nil {
			if s.opts.Chats == nil {
				s.post(func() { s.onAgentReply(seq, nil, "", errNoChatFactory, opening) })
				return
			}
			c, err := s.opts.Chats.StartChat(ctx, s.cfg.Persona, s.cfg.Settings.Scenario, history)
			if err != nil {
				s.post(func() { s.onAgentReply(seq, nil, "", err, opening) })
				return
			}
			chat = c
		}
		reply, err := chat.Send(ctx, text)
		s.post(func() { s.onAgentReply(seq, chat, reply, err, opening) })
	}()
}

func (s *Session) onAgentReply(seq uint64, chat Chat, reply string, err error, opening bool) {
	if seq != s.reqSeq || s.state != StateSendingToAgent {
		s.log.WithField("seq", seq).Debug("dropping stale agent reply")
		return
	}
	s.reqCancel = nil
	if chat != nil && s.chat == nil {
		s.chat = chat
	}
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = errEmptyReply
	}
	if err != nil {
		s.log.WithError(err).Warn("agent exchange failed")
		if s.endPending {
			s.finalize()
			return
		}
		if opening {
			s.notice = noticeOpeningFailed
		} else {
			s.notice = noticeAgentFailed
		}
		s.setState(StateAwaitingRecording)
		return
	}
	s.transcript = append(s.transcript, domain.Turn{Speaker: domain.SpeakerAgent, Text: reply})
	if s.endPending {
		s.finalize()
		return
	}
	s.setState(StateAgentSpeaking)
	s.speak(reply)
}

func (s *Session) speak(text string) {
	s.playSeq++
	seq := s.playSeq
	s.speaking = true
	s.progress = 0
	voice := domain.Voice{Selector: s.cfg.Settings.Voice, Rate: s.cfg.Settings.SpeechRate, Locale: s.cfg.Locale}
	s.opts.Speaker.Speak(s.ctx, text, voice,
		func(pct int) { s.post(func() { s.onPlaybackProgress(seq, pct) }) },
		func() { s.post(func() { s.onPlaybackDone(seq) }) },
	)
}

func (s *Session) onPlaybackProgress(seq uint64, pct int) {
	if seq != s.playSeq || !s.speaking {
		return
	}
	if pct > 100 {
		pct = 100
	}
	if pct > s.progress {
		s.progress = pct
	}
}

func (s *Session) onPlaybackDone(seq uint64) {
	if seq != s.playSeq || !s.speaking {
		return
	}
	s.speaking = false
	s.progress = 0
	if s.state != StateAgentSpeaking {
		return
	}
	if s.endPending {
		s.finalize()
		return
	}
	s.setState(StateAwaitingRecording)
}

func (s *Session) onStartRecording() {
	if !s.state.traineeTurn() || s.capturing {
		return
	}
	s.clearHint()
	s.draft = ""
	s.notice = ""
	s.setState(StateRecording)
	s.listening = true
	s.capSeq++
	seq := s.capSeq
	s.capturing = true
	s.capStarted = false
	s.stopOnOpen = false
	open := &captureOpen{}
	s.capOpen = open

	// opening a capture session may dial out, so it runs off the session goroutine
	rec, ctx := s.opts.Recorder, s.ctx
	go func() {
		err := rec.Start(ctx, func(text string) {
			s.post(func() { s.onCaptureDone(seq, text) })
		})
		if err == nil && !open.settle() {
			rec.Detach()
			return
		}
		s.post(func() { s.onCaptureStarted(seq, err) })
	}()
}

func (s *Session) onCaptureStarted(seq uint64, err error) {
	if seq != s.capSeq || !s.capturing {
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("capture start failed")
		s.onCaptureDone(seq, "")
		if s.state == StateReviewingDraft {
			s.notice = noticeCaptureFailed
		}
		return
	}
	s.capStarted = true
	if s.stopOnOpen {
		s.stopOnOpen = false
		s.opts.Recorder.Stop()
	}
}

// stopCapture asks the recorder to finish, or remembers to once it has opened.
func (s *Session) stopCapture() {
	if s.capStarted {
		s.opts.Recorder.Stop()
		return
	}
	s.stopOnOpen = true
}

func (s *Session) onStopRecording() {
	if s.state != StateRecording {
		return
	}
	s.listening = false
	s.setState(StateTranscribingForEnd)
	s.stopCapture()
}

func (s *Session) onCaptureDone(seq uint64, text string) {
	if seq != s.capSeq || !s.capturing {
		return
	}
	s.capturing = false
	s.capStarted = false
	s.stopOnOpen = false
	s.capOpen = nil
	s.listening = false
	text = strings.TrimSpace(text)
	switch s.state {
	case StateEnding:
		if text != "" {
			s.transcript = append(s.transcript, domain.Turn{Speaker: domain.SpeakerTrainee, Text: text})
		}
		s.finalize()
	case StateRecording, StateTranscribingForEnd:
		s.draft = text
		if text == "" {
			s.notice = noticeNoSpeech
		}
		s.setState(StateReviewingDraft)
	}
}

func (s *Session) onRerecord() {
	if s.state != StateReviewingDraft {
		return
	}
	s.onStartRecording()
}

func (s *Session) onEditDraft(text string) {
	if s.state != StateReviewingDraft {
		return
	}
	s.draft = text
}

func (s *Session) onSubmit() {
	if s.state != StateReviewingDraft {
		return
	}
	text := strings.TrimSpace(s.draft)
	if text == "" {
		s.notice = noticeEmptySubmit
		return
	}
	s.clearHint()
	s.draft = ""
	s.notice = ""
	history := s.transcript.Clone()
	s.transcript = append(s.transcript, domain.Turn{Speaker: domain.SpeakerTrainee, Text: text})
	s.setState(StateSendingToAgent)
	s.exchange(text, history, false)
}

func (s *Session) onTick() {
	if !s.active || s.timeLeft <= 0 {
		return
	}
	s.timeLeft--
	if s.timeLeft == 0 {
		s.onEnd("timeout")
	}
}

func (s *Session) onEnd(reason string) {
	if s.finished || s.state == StateEnding {
		return
	}
	s.stopTicker()
	log := s.log.WithFields(logrus.Fields{"reason": reason, "state": s.state})
	switch s.state {
	case StateRecording:
		log.Info("ending call after capture completes")
		s.listening = false
		s.setState(StateEnding)
		s.stopCapture()
	case StateTranscribingForEnd:
		log.Info("ending call after capture completes")
		s.setState(StateEnding)
	case StateSendingToAgent:
		log.Info("ending call once the agent reply lands")
		s.endPending = true
	case StateAgentSpeaking:
		log.Info("ending call; cancelling playback")
		s.endPending = true
		s.opts.Speaker.Cancel()
	default:
		log.Info("ending call")
		s.finalize()
	}
}

func (s *Session) onRequestHint() {
	if !s.state.traineeTurn() {
		return
	}
	s.cancelHint()
	s.hintSeq++
	seq := s.hintSeq
	s.hint = ""
	s.hintBusy = true
	if s.opts.Hinter == nil {
		s.onHintDone(seq, "", errNoHinter)
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RequestTimeout)
	s.hintCancel = cancel
	transcript := s.transcript.Clone()
	go func() {
		defer cancel()
		text, err := s.opts.Hinter.Hint(ctx, transcript, s.cfg.Settings.Scenario, s.cfg.Settings.Country)
		s.post(func() { s.onHintDone(seq, text, err) })
	}()
}

func (s *Session) onHintDone(seq uint64, text string, err error) {
	if seq != s.hintSeq {
		return
	}
	s.hintBusy = false
	s.hintCancel = nil
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil {
			s.log.WithError(err).Warn("hint request failed")
		}
		s.hint = hintApology
		return
	}
	s.hint = text
}

func (s *Session) onDismissHint() { s.clearHint() }

func (s *Session) clearHint() {
	s.cancelHint()
	s.hintSeq++
	s.hint = ""
	s.hintBusy = false
}

func (s *Session) cancelHint() {
	if s.hintCancel != nil {
		s.hintCancel()
		s.hintCancel = nil
	}
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.tickC = nil
}

func (s *Session) finalize() {
	if s.finished {
		return
	}
	s.setState(StateEnding)
	s.stopTicker()
	s.clearHint()
	s.finished = true
	s.active = false
	s.endPending = false
	s.listening = false
	final := s.transcript.Clone()
	s.mu.Lock()
	s.final = final
	s.mu.Unlock()
	s.log.WithField("turns", len(final)).Info("call finished")
	s.publish()
	if s.opts.OnEnd != nil {
		s.opts.OnEnd(final.Clone())
	}
}

// teardown releases adapters still held when the loop exits.
func (s *Session) teardown() {
	s.stopTicker()
	s.cancelHint()
	if s.reqCancel != nil {
		s.reqCancel()
		s.reqCancel = nil
	}
	if s.capturing {
		s.capturing = false
		if s.capOpen == nil || s.capOpen.abandon() {
			s.opts.Recorder.Detach()
		}
	}
	if s.speaking {
		s.speaking = false
		s.opts.Speaker.Cancel()
	}
	s.cancel()
}

// captureOpen hands a freshly opened capture session to the session goroutine,
// or back to the opener for detaching when the session is already gone.
type captureOpen struct {
	mu        sync.Mutex
	opened    bool
	abandoned bool
}

// settle records a successful open; false means the session was torn down meanwhile.
func (c *captureOpen) settle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned {
		return false
	}
	c.opened = true
	return true
}

// abandon marks the open as unwanted and reports whether it had already succeeded.
func (c *captureOpen) abandon() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandoned = true
	return c.opened
}

// mailbox is an unbounded FIFO so adapter callbacks never block, even when
// they fire synchronously on the session goroutine.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
}

func newMailbox() mailbox { return mailbox{signal: make(chan struct{}, 1)} }

func (m *mailbox) push(ev func()) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

type nopSpeaker struct{}

func (nopSpeaker) Speak(_ context.Context, _ string, _ domain.Voice, _ func(int), onDone func()) {
	if onDone != nil {
		onDone()
	}
}
func (nopSpeaker) Cancel() {}

type nopRecorder struct{}

func (nopRecorder) Start(context.Context, func(string)) error { return errNoRecorder }
func (nopRecorder) Stop()                                    {}
func (nopRecorder) Detach()                                  {}
