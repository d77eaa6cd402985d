// Package audio turns uploaded audio of any container into canonical PCM:
// mono, a fixed sample rate, and a configured sample encoding.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// Encoding is the sample encoding handed to the inference engine.
type Encoding int

const (
	// EncodingPCM16 is signed 16-bit little-endian PCM.
	EncodingPCM16 Encoding = iota
	// EncodingFloat32 is IEEE float samples normalized to [-1, 1).
	EncodingFloat32
)

// ParseEncoding accepts "s16"/"pcm16" and "f32"/"float32".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "s16", "pcm16", "pcm_s16le":
		return EncodingPCM16, nil
	case "f32", "float32", "pcm_f32le":
		return EncodingFloat32, nil
	default:
		return 0, fmt.Errorf("unknown sample encoding %q (supported: s16, f32)", s)
	}
}

func (e Encoding) String() string {
	if e == EncodingFloat32 {
		return "f32"
	}
	return "s16"
}

// BitsPerSample returns the sample width of the encoding.
func (e Encoding) BitsPerSample() int {
	if e == EncodingFloat32 {
		return 32
	}
	return 16
}

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.Encoding)
}

// Canonical returns the canonical mono format at rate.
func Canonical(rate int, enc Encoding) Format {
	return Format{SampleRate: rate, Channels: 1, Encoding: enc}
}

// Buffer is decoded PCM held as interleaved int16 samples. Once normalized it
// is mono and Format.Encoding names the encoding it is exported in.
type Buffer struct {
	Format  Format
	Samples []int16
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.Format.SampleRate))
}

// Slice returns frames [start, end) sharing the underlying samples.
func (b *Buffer) Slice(start, end int) *Buffer {
	ch := b.Format.Channels
	return &Buffer{Format: b.Format, Samples: b.Samples[start*ch : end*ch]}
}

// Float32 returns the samples normalized to [-1, 1).
func (b *Buffer) Float32() []float32 {
	out := make([]float32, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Bytes returns the samples in the buffer's encoding, little-endian.
func (b *Buffer) Bytes() []byte {
	if b.Format.Encoding == EncodingFloat32 {
		out := make([]byte, len(b.Samples)*4)
		for i, s := range b.Samples {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(s)/32768))
		}
		return out
	}
	out := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// CheckFormat reports a mismatch between a decoded format and the target.
func CheckFormat(got, want Format) error {
	var problems []string
	if got.Channels != want.Channels {
		problems = append(problems, fmt.Sprintf("channels = %d, want %d", got.Channels, want.Channels))
	}
	if got.SampleRate != want.SampleRate {
		problems = append(problems, fmt.Sprintf("sample rate = %d, want %d", got.SampleRate, want.SampleRate))
	}
	if got.Encoding != want.Encoding {
		problems = append(problems, fmt.Sprintf("encoding = %s (%d bits), want %s (%d bits)",
			got.Encoding, got.Encoding.BitsPerSample(), want.Encoding, want.Encoding.BitsPerSample()))
	}
	if len(problems) > 0 {
		return fmt.Errorf("canonical format mismatch: %s", strings.Join(problems, ", "))
	}
	return nil
}
