package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// SampleRate of the PCM returned by the Gemini TTS model.
	SampleRate = 24000
	// Channels of the PCM returned by the Gemini TTS model.
	Channels = 1

	bitsPerSample = 16
)

// ErrInvalidAudio is returned when synthesized audio cannot be decoded.
var ErrInvalidAudio = errors.New("invalid audio data")

// Clip is decoded little-endian 16-bit PCM.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DecodeBase64PCM decodes base64 encoded 16-bit PCM into a clip.
func DecodeBase64PCM(data string, sampleRate, channels int) (*Clip, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	return DecodePCM(raw, sampleRate, channels)
}

// DecodePCM interprets raw bytes as interleaved little-endian 16-bit samples.
func DecodePCM(raw []byte, sampleRate, channels int) (*Clip, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d, channels %d", ErrInvalidAudio, sampleRate, channels)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidAudio)
	}
	if len(raw)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of frames", ErrInvalidAudio, len(raw))
	}
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	return &Clip{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	return len(c.Samples) / c.Channels
}

// Duration is the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Float32 returns the channel data normalized to [-1, 1).
func (c *Clip) Float32(channel int) []float32 {
	out := make([]float32, c.Frames())
	for i := range out {
		out[i] = float32(c.Samples[i*c.Channels+channel]) / 32768.0
	}
	return out
}

// WAV wraps the clip in a RIFF/WAVE container.
func (c *Clip) WAV() []byte {
	dataLen := len(c.Samples) * 2
	blockAlign := c.Channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(c.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(c.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(c.SampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(&buf, binary.LittleEndian, c.Samples)
	return buf.Bytes()
}
