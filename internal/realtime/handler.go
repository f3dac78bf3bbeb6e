// Package realtime runs a training call over a browser WebSocket: control
// messages and microphone audio in, call state and persona audio out.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/agent"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/report"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/transcript"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/tts"
)

const (
	writeTimeout            = 5 * time.Second
	clientCaptureStopWindow = 3 * time.Second
)

// Evaluator scores a finished call.
type Evaluator interface {
	Evaluate(ctx context.Context, t domain.Transcript, p domain.Persona, scenario, criteria, country string) (domain.EvaluationReport, error)
}

// Coach is everything model-backed a call needs.
type Coach interface {
	agent.ChatFactory
	agent.Hinter
	Evaluator
}

// ServerRecognizer is a Recorder fed with the microphone audio received here.
type ServerRecognizer interface {
	agent.Recorder
	FeedPCM16KLE(pcm []byte)
}

// Options configures a Handler. A nil Synthesizer selects browser playback;
// a nil NewRecognizer selects browser speech recognition.
type Options struct {
	Coach         Coach
	Synthesizer   tts.Synthesizer
	NewRecognizer func(locale string, log logrus.FieldLogger) ServerRecognizer
	Logger        logrus.FieldLogger

	Defaults          domain.CallSettings
	DefaultCriteria   string
	TickInterval      time.Duration
	EvaluationTimeout time.Duration
}

// Handler upgrades /call requests and runs one call at a time per connection.
type Handler struct {
	opts     Options
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewHandler(opts Options) *Handler {
	if opts.EvaluationTimeout <= 0 {
		opts.EvaluationTimeout = 90 * time.Second
	}
	return &Handler{
		opts: opts,
		log:  logging.Or(opts.Logger).WithField("component", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  65536,
			WriteBufferSize: 65536,
			// the simulator is served from the same origin in production and from a dev server locally
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade error")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &callConn{h: h, ws: ws, ctx: ctx, cancel: cancel, out: newOutbox(), log: h.log.WithField("remote", r.RemoteAddr)}
	go c.writeLoop()
	c.run()
}

type callConn struct {
	h      *Handler
	ws     *websocket.Conn
	out    *outbox
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc

	// owned by the read loop
	sess       *agent.Session
	persona    domain.Persona
	settings   domain.CallSettings
	criteria   string
	recognizer ServerRecognizer
	clientRec  *clientRecognizer
	clientSpk  *clientSpeaker
	paced      *PacedWriter
}

func (c *callConn) run() {
	defer c.close()
	c.log.Info("call connection opened")
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Debug("ws read ended")
			}
			return
		}
		if mt == websocket.BinaryMessage {
			if c.recognizer != nil {
				c.recognizer.FeedPCM16KLE(data)
			}
			continue
		}
		m, err := decodeInbound(data)
		if err != nil {
			c.sendError("invalid message")
			continue
		}
		c.dispatch(m)
	}
}

func (c *callConn) dispatch(m inbound) {
	if m.Type == msgStart {
		c.start(m)
		return
	}
	if c.sess == nil {
		c.sendError("no call in progress")
		return
	}
	switch m.Type {
	case msgRecord:
		c.sess.StartRecording()
	case msgStop:
		c.sess.StopRecording()
	case msgRerecord:
		c.sess.Rerecord()
	case msgDraft:
		c.sess.EditDraft(m.Text)
	case msgSubmit:
		c.sess.Submit()
	case msgHint:
		c.sess.RequestHint()
	case msgDismissHint:
		c.sess.DismissHint()
	case msgEnd:
		c.sess.EndCall()
	case msgRecognized:
		if c.clientRec != nil {
			c.clientRec.Recognized(m.Text)
		}
	case msgRecognitionEnd:
		if c.clientRec != nil {
			c.clientRec.End()
		}
	case msgSpeechProgress:
		if c.clientSpk != nil {
			c.clientSpk.Progress(m.ID, m.Progress)
		}
	case msgSpeechEnd:
		if c.clientSpk != nil {
			c.clientSpk.End(m.ID)
		}
	default:
		c.log.WithField("type", m.Type).Debug("unknown message type")
	}
}

func (c *callConn) start(m inbound) {
	if c.sess != nil {
		select {
		case <-c.sess.Done():
		default:
			c.sendError("a call is already in progress")
			return
		}
	}
	if m.Persona == nil || m.Persona.Name == "" {
		c.sendError("a persona is required to start a call")
		return
	}
	if err := m.Transcript.Validate(); err != nil {
		c.sendError(err.Error())
		return
	}
	settings := c.h.opts.Defaults
	if m.Settings != nil {
		settings = *m.Settings
	}
	if settings.SpeechRate <= 0 {
		settings.SpeechRate = 1
	}
	if settings.TimeLimit < 0 {
		settings.TimeLimit = 0
	}
	c.persona = *m.Persona
	c.settings = settings
	c.criteria = m.Criteria
	if c.criteria == "" {
		c.criteria = c.h.opts.DefaultCriteria
	}

	callID := uuid.NewString()
	locale := transcript.Locale(settings.Country)
	log := c.log.WithFields(logrus.Fields{"call_id": callID, "locale": locale})

	var rec agent.Recorder
	c.recognizer, c.clientRec = nil, nil
	if c.h.opts.NewRecognizer != nil {
		c.recognizer = c.h.opts.NewRecognizer(locale, log)
		rec = c.recognizer
	} else {
		c.clientRec = newClientRecognizer(clientCaptureStopWindow)
		rec = c.clientRec
	}

	var spk agent.Speaker
	c.clientSpk = nil
	if c.h.opts.Synthesizer != nil {
		if c.paced == nil {
			c.paced = NewPacedWriter(c)
		}
		spk = tts.NewPlayer(c.h.opts.Synthesizer, c.paced, log)
	} else {
		c.clientSpk = newClientSpeaker(c.send)
		spk = c.clientSpk
	}

	persona, criteria := c.persona, c.criteria
	c.sess = agent.NewSession(c.ctx, agent.CallConfig{
		CallID:   callID,
		Persona:  persona,
		Settings: settings,
		Locale:   locale,
		History:  m.Transcript,
	}, agent.Options{
		Chats:        c.h.opts.Coach,
		Hinter:       c.h.opts.Coach,
		Recorder:     rec,
		Speaker:      spk,
		Logger:       log,
		TickInterval: c.h.opts.TickInterval,
		OnChange: func(s agent.Snapshot) {
			c.send(outbound{Type: msgState, State: &s})
		},
		OnEnd: func(t domain.Transcript) {
			c.send(outbound{Type: msgEnded, Transcript: t})
			go c.evaluate(log, t, persona, settings, criteria)
		},
	})
	c.sess.Start()
}

func (c *callConn) evaluate(log logrus.FieldLogger, t domain.Transcript, p domain.Persona, s domain.CallSettings, criteria string) {
	if c.h.opts.Coach == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.h.opts.EvaluationTimeout)
	defer cancel()
	r, err := c.h.opts.Coach.Evaluate(ctx, t, p, s.Scenario, criteria, s.Country)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("evaluation failed")
		c.sendError("Could not generate the performance report. Please try again.")
		return
	}
	log.WithField("score", r.OverallScore).Info("call evaluated")
	c.send(outbound{
		Type:       msgReport,
		Report:     &r,
		Transcript: t,
		Text:       report.Text(r, t),
		FileName:   report.FileName(time.Now()),
	})
}

// close abandons any running call without evaluating it.
func (c *callConn) close() {
	c.cancel()
	_ = c.ws.Close()
	if c.sess != nil {
		c.sess.Close()
		<-c.sess.Done()
	}
	if c.paced != nil {
		c.paced.Close()
	}
	c.log.Info("call connection closed")
}

// send queues m for the writer goroutine; it never blocks.
func (c *callConn) send(m outbound) { c.out.push(wsMessage{msg: m}) }

func (c *callConn) sendError(msg string) {
	c.send(outbound{Type: msgError, Error: msg})
}

// WriteFrame, AudioStart and AudioEnd make the connection the PacedWriter's sink.
// Frames share the queue with text messages so audio_start and audio_end stay in order around them.
func (c *callConn) WriteFrame(frame []byte) error {
	c.out.push(wsMessage{frame: frame})
	return nil
}

func (c *callConn) AudioStart() { c.send(outbound{Type: msgAudioStart, SampleRate: 48000}) }

func (c *callConn) AudioEnd() { c.send(outbound{Type: msgAudioEnd}) }

// writeLoop is the connection's only writer. A failed write drops the connection.
func (c *callConn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.out.signal:
			for _, m := range c.out.drain() {
				if err := c.write(m); err != nil {
					c.log.WithError(err).Debug("ws write error")
					c.cancel()
					_ = c.ws.Close()
					return
				}
			}
		}
	}
}

func (c *callConn) write(m wsMessage) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if m.frame != nil {
		return c.ws.WriteMessage(websocket.BinaryMessage, m.frame)
	}
	return c.ws.WriteJSON(m.msg)
}

// wsMessage is either a JSON message or a binary audio frame.
type wsMessage struct {
	msg   outbound
	frame []byte
}

// outbox is an unbounded FIFO between the call and the writer goroutine.
// A state snapshot queued right behind another replaces it.
type outbox struct {
	mu     sync.Mutex
	queue  []wsMessage
	signal chan struct{}
}

func newOutbox() *outbox { return &outbox{signal: make(chan struct{}, 1)} }

func (o *outbox) push(m wsMessage) {
	o.mu.Lock()
	if n := len(o.queue); n > 0 && isState(m) && isState(o.queue[n-1]) {
		o.queue[n-1] = m
	} else {
		o.queue = append(o.queue, m)
	}
	o.mu.Unlock()
	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *outbox) drain() []wsMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil
	return q
}

func isState(m wsMessage) bool { return m.frame == nil && m.msg.Type == msgState }
