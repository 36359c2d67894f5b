// Package chat drives one streamed model answer to its consumers.
package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"studybuddy/internal/speech"
)

// State of a chat turn.
type State int

const (
	// Idle is a turn that has not started.
	Idle State = iota
	// AwaitingFirstChunk is a started turn with no fragment yet.
	AwaitingFirstChunk
	// Streaming means fragments are arriving.
	Streaming
	// Complete means the stream ended and every sink was completed.
	Complete
	// Failed means the stream or its context returned an error.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstChunk:
		return "awaiting-first-chunk"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrTurnStarted is returned when Run is called twice on one turn.
var ErrTurnStarted = errors.New("chat turn already started")

// Sink receives every fragment of a turn in order. Complete is called only
// when the stream ended without error.
type Sink interface {
	OnFragment(fragment string)
	Complete()
}

// Funcs adapts two functions to Sink. Nil functions are skipped.
type Funcs struct {
	Fragment func(string)
	Done     func()
}

func (f Funcs) OnFragment(fragment string) {
	if f.Fragment != nil {
		f.Fragment(fragment)
	}
}

func (f Funcs) Complete() {
	if f.Done != nil {
		f.Done()
	}
}

// Turn is one outstanding answer.
type Turn struct {
	mu    sync.Mutex
	state State
	text  strings.Builder
	err   error
}

// NewTurn returns an idle turn.
func NewTurn() *Turn {
	return &Turn{}
}

// Run consumes stream once and fans each fragment out to sinks. It returns
// the full answer text, or the first stream error.
func (t *Turn) Run(ctx context.Context, stream iter.Seq2[string, error], sinks ...Sink) (string, error) {
	t.mu.Lock()
	if t.state != Idle {
		t.mu.Unlock()
		return "", ErrTurnStarted
	}
	t.state = AwaitingFirstChunk
	t.mu.Unlock()

	for fragment, err := range stream {
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			t.fail(err)
			return "", err
		}

		t.mu.Lock()
		t.state = Streaming
		t.text.WriteString(fragment)
		t.mu.Unlock()

		for _, s := range sinks {
			s.OnFragment(fragment)
		}
	}
	if err := ctx.Err(); err != nil {
		t.fail(err)
		return "", err
	}

	t.mu.Lock()
	t.state = Complete
	text := t.text.String()
	t.mu.Unlock()

	for _, s := range sinks {
		s.Complete()
	}
	return text, nil
}

func (t *Turn) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Failed
	t.err = err
}

// State returns where the turn is in its lifecycle.
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Text is the answer received so far.
func (t *Turn) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// Err is the error that failed the turn, if any.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// SentenceSink segments fragments into sentences and hands each one to
// Speak. The remainder is flushed as a final sentence on Complete.
type SentenceSink struct {
	Speak func(sentence string)

	seg speech.Segmenter
}

func (s *SentenceSink) OnFragment(fragment string) {
	for _, sentence := range s.seg.Write(fragment) {
		s.Speak(sentence)
	}
}

func (s *SentenceSink) Complete() {
	if rest := s.seg.Flush(); rest != "" {
		s.Speak(rest)
	}
}
