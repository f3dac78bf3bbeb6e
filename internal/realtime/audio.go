package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	frameDuration = 20 * time.Millisecond
	// frameBytes is 20 ms of 48 kHz mono PCM16LE.
	frameBytes = 48000 / 50 * 2
	// tailFrames of silence keep the end of an utterance from clipping.
	tailFrames = 10
)

// frameSink receives paced audio frames and hears when a burst starts and ends.
type frameSink interface {
	WriteFrame(frame []byte) error
	AudioStart()
	AudioEnd()
}

// PacedWriter slices 48 kHz PCM into 20 ms frames and releases them in real time.
type PacedWriter struct {
	out     frameSink
	pcmBuf  []byte
	frames  chan []byte
	pending atomic.Int64
	stopCh  chan struct{}
	stopped bool
	active  bool
	mu      sync.Mutex
	tick    time.Duration
}

// NewPacedWriter starts the pacer goroutine; Close stops it.
func NewPacedWriter(out frameSink) *PacedWriter {
	w := newPacedWriter(out, frameDuration)
	go w.pacer()
	return w
}

func newPacedWriter(out frameSink, tick time.Duration) *PacedWriter {
	return &PacedWriter{
		out:    out,
		frames: make(chan []byte, 512),
		stopCh: make(chan struct{}),
		tick:   tick,
	}
}

// WritePCM buffers PCM and queues every complete frame.
func (w *PacedWriter) WritePCM(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	w.mu.Lock()
	w.pcmBuf = append(w.pcmBuf, pcm...)
	var ready [][]byte
	for len(w.pcmBuf) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, w.pcmBuf[:frameBytes])
		ready = append(ready, frame)
		w.pcmBuf = w.pcmBuf[frameBytes:]
	}
	w.startLocked(len(ready) > 0)
	w.mu.Unlock()
	for _, f := range ready {
		w.pushFrame(f)
	}
}

// FlushTail pads the remaining PCM to a full frame and adds a short silence tail.
func (w *PacedWriter) FlushTail() {
	w.mu.Lock()
	var ready [][]byte
	if len(w.pcmBuf) > 0 {
		frame := make([]byte, frameBytes)
		copy(frame, w.pcmBuf)
		ready = append(ready, frame)
		w.pcmBuf = w.pcmBuf[:0]
	}
	if w.active || len(ready) > 0 {
		for i := 0; i < tailFrames; i++ {
			ready = append(ready, make([]byte, frameBytes))
		}
	}
	w.startLocked(len(ready) > 0)
	w.mu.Unlock()
	for _, f := range ready {
		w.pushFrame(f)
	}
}

func (w *PacedWriter) startLocked(haveAudio bool) {
	if haveAudio && !w.active && !w.stopped {
		w.active = true
		w.out.AudioStart()
	}
}

// Drain blocks until every queued frame has been written, then reports the end of the burst.
func (w *PacedWriter) Drain(ctx context.Context) error {
	t := time.NewTicker(w.tick / 2)
	defer t.Stop()
	for w.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-t.C:
		}
	}
	w.end()
	return nil
}

// Reset clears any queued frames so playback stops immediately.
func (w *PacedWriter) Reset() {
	w.mu.Lock()
	for {
		select {
		case <-w.frames:
			w.pending.Add(-1)
			continue
		default:
		}
		break
	}
	w.pcmBuf = w.pcmBuf[:0]
	w.mu.Unlock()
	w.end()
}

func (w *PacedWriter) end() {
	w.mu.Lock()
	wasActive := w.active
	w.active = false
	w.mu.Unlock()
	if wasActive {
		w.out.AudioEnd()
	}
}

// Close stops the pacer.
func (w *PacedWriter) Close() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
	w.mu.Unlock()
}

func (w *PacedWriter) pacer() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-w.frames:
				_ = w.out.WriteFrame(frame)
				w.pending.Add(-1)
			default:
			}
		}
	}
}

// pushFrame enqueues a frame, blocking until space is available or stopped.
func (w *PacedWriter) pushFrame(frame []byte) {
	w.pending.Add(1)
	select {
	case <-w.stopCh:
		w.pending.Add(-1)
	case w.frames <- frame:
	}
}
