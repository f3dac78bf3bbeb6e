package tts

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/logging"
)

// chunkReply splits a reply into sentence-sized pieces so synthesis of the
// first sentence can start playing while the rest is still pending.
func chunkReply(reply string) []string {
	txt := strings.TrimSpace(reply)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			chunk := strings.TrimSpace(b.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		case '\n', '\r':
			chunk := strings.TrimSpace(b.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	tail := strings.TrimSpace(b.String())
	if tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// Player speaks one utterance at a time through a Synthesizer into a PCMSink.
type Player struct {
	synth Synthesizer
	sink  PCMSink
	log   logrus.FieldLogger

	mu  sync.Mutex
	cur *utterance

	// sinkMu orders writes against Reset so a cancelled utterance cannot
	// queue audio after its reset.
	sinkMu sync.Mutex
}

type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(synth Synthesizer, sink PCMSink, log logrus.FieldLogger) *Player {
	return &Player{synth: synth, sink: sink, log: logging.Or(log).WithField("component", "player")}
}

// Speak cancels any active utterance and plays text. onDone is called exactly
// once, after the audio has drained or the utterance was cancelled or failed.
func (p *Player) Speak(ctx context.Context, text string, voice domain.Voice, onProgress func(pct int), onDone func()) {
	p.Cancel()

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{cancel: cancel, done: make(chan struct{})}
	p.mu.Lock()
	prev := p.cur
	p.cur = u
	p.mu.Unlock()

	voiceID := SelectVoice(p.synth.Voices(), voice.Selector, voice.Locale, p.synth.DefaultVoice())
	go func() {
		defer close(u.done)
		defer cancel()
		if prev != nil {
			<-prev.done
		}
		p.play(uctx, text, voiceID, voice.Rate, onProgress)
		p.mu.Lock()
		if p.cur == u {
			p.cur = nil
		}
		p.mu.Unlock()
		if onDone != nil {
			onDone()
		}
	}()
}

// Cancel stops the active utterance and drops its queued audio.
func (p *Player) Cancel() {
	p.mu.Lock()
	u := p.cur
	p.mu.Unlock()
	if u == nil {
		return
	}
	u.cancel()
	p.sinkMu.Lock()
	p.sink.Reset()
	p.sinkMu.Unlock()
}

// write forwards audio unless the utterance was cancelled.
func (p *Player) write(ctx context.Context, b []byte) bool {
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	p.sink.WritePCM(b)
	return true
}

func (p *Player) play(ctx context.Context, text, voiceID string, rate float64, onProgress func(int)) {
	chunks := chunkReply(text)
	total := 0
	for _, c := range chunks {
		total += utf8.RuneCountInString(c)
	}
	reported := -1
	report := func(pct int) {
		if pct > 100 {
			pct = 100
		}
		if pct <= reported || onProgress == nil {
			return
		}
		reported = pct
		onProgress(pct)
	}
	report(0)

	log := p.log.WithField("voice", voiceID)
	spoken := 0
	for _, chunk := range chunks {
		pcmCh, errCh := p.synth.StreamPCM48k(ctx, chunk, voiceID, rate)
		failed := false
		for pcmCh != nil || errCh != nil {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-pcmCh:
				if !ok {
					pcmCh = nil
					continue
				}
				if !p.write(ctx, b) {
					return
				}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					log.WithError(err).Warn("tts stream error")
					failed = true
				}
			}
		}
		if failed {
			// playback errors end the utterance; what was queued still plays out
			break
		}
		spoken += utf8.RuneCountInString(chunk)
		if total > 0 {
			// 100 is reserved for when the audio has actually drained
			report(min(spoken*100/total, 99))
		}
	}

	p.sinkMu.Lock()
	if ctx.Err() != nil {
		p.sinkMu.Unlock()
		return
	}
	p.sink.FlushTail()
	p.sinkMu.Unlock()
	if err := p.sink.Drain(ctx); err != nil {
		return
	}
	report(100)
}
