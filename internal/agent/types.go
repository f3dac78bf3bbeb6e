package agent

import (
	"context"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

// Chat is a stateful persona conversation. Send returns the persona's complete
// reply; streamed chunks are buffered by the implementation.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
}

// ChatFactory opens a chat seeded with the persona, scenario and any prior transcript.
type ChatFactory interface {
	StartChat(ctx context.Context, p domain.Persona, scenario string, history domain.Transcript) (Chat, error)
}

// ChatFactoryFunc adapts a function to ChatFactory.
type ChatFactoryFunc func(ctx context.Context, p domain.Persona, scenario string, history domain.Transcript) (Chat, error)

func (f ChatFactoryFunc) StartChat(ctx context.Context, p domain.Persona, scenario string, history domain.Transcript) (Chat, error) {
	return f(ctx, p, scenario, history)
}

// Hinter suggests the trainee's next question. It is stateless and independent of any Chat.
type Hinter interface {
	Hint(ctx context.Context, t domain.Transcript, scenario, country string) (string, error)
}

// Recorder captures one utterance at a time.
//
// Start opens a capture session; starting while one is open is a no-op.
// Stop only requests cessation: onResult is then invoked exactly once with the
// finalized text (possibly empty). Detach ends any session without invoking onResult.
// onResult may be called from any goroutine.
type Recorder interface {
	Start(ctx context.Context, onResult func(text string)) error
	Stop()
	Detach()
}

// Speaker plays synthesized speech. Speak cancels any active utterance first and
// always calls onDone exactly once, including on error or Cancel. onProgress
// receives monotonically increasing percentages in [0,100].
type Speaker interface {
	Speak(ctx context.Context, text string, voice domain.Voice, onProgress func(pct int), onDone func())
	Cancel()
}
