package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Player plays a clip and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(ctx context.Context, clip *Clip) error

func (f PlayerFunc) Play(ctx context.Context, clip *Clip) error { return f(ctx, clip) }

// PlayBase64 decodes Gemini TTS output and plays it.
func PlayBase64(ctx context.Context, p Player, data string) error {
	clip, err := DecodeBase64PCM(data, SampleRate, Channels)
	if err != nil {
		return err
	}
	return p.Play(ctx, clip)
}

// CommandPlayer pipes WAV data into an external player such as "aplay -q"
// or "ffplay -autoexit -nodisp -loglevel quiet -".
type CommandPlayer struct {
	Name string
	Args []string
}

// NewCommandPlayer splits a command line on whitespace.
func NewCommandPlayer(command string) (*CommandPlayer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty audio player command")
	}
	return &CommandPlayer{Name: fields[0], Args: fields[1:]}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, clip *Clip) error {
	cmd := exec.CommandContext(ctx, p.Name, p.Args...)
	cmd.Stdin = bytes.NewReader(clip.WAV())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio player %s: %w: %s", p.Name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// DirPlayer writes every clip as a numbered WAV file instead of playing it.
type DirPlayer struct {
	Dir string

	mu sync.Mutex
	n  int
}

func (p *DirPlayer) Play(_ context.Context, clip *Clip) error {
	p.mu.Lock()
	p.n++
	name := filepath.Join(p.Dir, fmt.Sprintf("sentence-%03d.wav", p.n))
	p.mu.Unlock()

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, clip.WAV(), 0o644)
}
