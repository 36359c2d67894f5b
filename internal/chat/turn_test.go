package chat

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragments(parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func failing(parts []string, err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
		yield("", err)
	}
}

func TestRunFansOutToEverySink(t *testing.T) {
	turn := NewTurn()
	assert.Equal(t, Idle, turn.State())

	var rendered []string
	var states []State
	render := Funcs{Fragment: func(f string) {
		rendered = append(rendered, f)
		states = append(states, turn.State())
	}}
	var spoken []string
	speak := &SentenceSink{Speak: func(s string) { spoken = append(spoken, s) }}

	text, err := turn.Run(context.Background(), fragments("ATP is made in ", "the mitochondria. It powers", " the cell"), render, speak)
	require.NoError(t, err)

	assert.Equal(t, "ATP is made in the mitochondria. It powers the cell", text)
	assert.Equal(t, []string{"ATP is made in ", "the mitochondria. It powers", " the cell"}, rendered)
	assert.Equal(t, []State{Streaming, Streaming, Streaming}, states)
	assert.Equal(t, []string{"ATP is made in the mitochondria.", "It powers the cell"}, spoken)
	assert.Equal(t, Complete, turn.State())
	assert.Equal(t, text, turn.Text())
}

func TestRunFailureSkipsComplete(t *testing.T) {
	boom := errors.New("stream broke")
	completed := false
	turn := NewTurn()

	_, err := turn.Run(context.Background(), failing([]string{"partial"}, boom), Funcs{Done: func() { completed = true }})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, turn.State())
	assert.ErrorIs(t, turn.Err(), boom)
	assert.Equal(t, "partial", turn.Text())
	assert.False(t, completed)
}

func TestRunFailsBeforeFirstChunk(t *testing.T) {
	turn := NewTurn()
	_, err := turn.Run(context.Background(), failing(nil, errors.New("no key")))
	assert.Error(t, err)
	assert.Equal(t, Failed, turn.State())
	assert.Empty(t, turn.Text())
}

func TestRunHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	turn := NewTurn()
	_, err := turn.Run(ctx, fragments("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, turn.State())
}

func TestRunOnlyOnce(t *testing.T) {
	turn := NewTurn()
	_, err := turn.Run(context.Background(), fragments("done"))
	require.NoError(t, err)

	_, err = turn.Run(context.Background(), fragments("again"))
	assert.ErrorIs(t, err, ErrTurnStarted)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-first-chunk", AwaitingFirstChunk.String())
	assert.Equal(t, "unknown", State(42).String())
}
