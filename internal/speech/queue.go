package speech

import (
	"context"
	"fmt"
	"sync"

	"studybuddy/internal/audio"

	"go.uber.org/zap"
)

// Synthesizer turns text into base64 16-bit PCM.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) (string, error)
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, text string) (string, error)

func (f SynthesizerFunc) SynthesizeSpeech(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// ErrorHandler is told about every sentence that could not be spoken.
type ErrorHandler func(sentence string, err error)

// Queue speaks sentences one at a time in the order they were enqueued.
// Producers never block: the backlog is unbounded and a single worker
// drains it, so at most one sentence is being synthesized or played.
type Queue struct {
	synth   Synthesizer
	player  audio.Player
	onError ErrorHandler
	log     *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []string
	closed   bool
	canceled bool
	speaking bool

	done chan struct{}
	stop func() bool
}

// NewQueue starts the worker. It runs until Close is called and the backlog
// is drained, or until ctx is canceled.
func NewQueue(ctx context.Context, synth Synthesizer, player audio.Player, onError ErrorHandler, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{
		synth:   synth,
		player:  player,
		onError: onError,
		log:     log,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.stop = context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.canceled = true
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	go q.run(ctx)
	return q
}

// Enqueue adds a sentence to the backlog. It reports false once the queue is closed.
func (q *Queue) Enqueue(sentence string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.canceled {
		return false
	}
	q.pending = append(q.pending, sentence)
	q.cond.Signal()
	return true
}

// Close stops intake. Sentences already queued are still spoken.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Wait blocks until the worker has exited.
func (q *Queue) Wait() {
	<-q.done
}

// Len is the number of sentences waiting to be spoken.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Speaking reports whether a sentence is currently being synthesized or played.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	defer q.stop()

	for {
		sentence, ok := q.next()
		if !ok {
			return
		}
		q.speak(ctx, sentence)

		q.mu.Lock()
		q.speaking = false
		q.mu.Unlock()
	}
}

// next blocks for the next sentence and marks the queue as speaking.
func (q *Queue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed && !q.canceled {
		q.cond.Wait()
	}
	if q.canceled || len(q.pending) == 0 {
		return "", false
	}
	sentence := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]
	q.speaking = true
	return sentence, true
}

func (q *Queue) speak(ctx context.Context, sentence string) {
	data, err := q.synth.SynthesizeSpeech(ctx, sentence)
	if err != nil {
		q.fail(sentence, fmt.Errorf("synthesizing speech: %w", err))
		return
	}
	if err := audio.PlayBase64(ctx, q.player, data); err != nil {
		q.fail(sentence, fmt.Errorf("playing speech: %w", err))
	}
}

func (q *Queue) fail(sentence string, err error) {
	q.log.Warn("sentence not spoken", zap.String("sentence", sentence), zap.Error(err))
	if q.onError != nil {
		q.onError(sentence, err)
	}
}
