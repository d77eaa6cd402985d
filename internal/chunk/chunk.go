// Package chunk splits canonical audio into ordered units for the inference
// engine. Stateful streaming recognizers get fixed-size raw frames; stateless
// batch engines get fixed-duration, self-contained WAV segments.
package chunk

import (
	"time"

	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/audio"
)

const (
	DefaultFrameSamples = 4000
	DefaultWindow       = 30 * time.Second
)

// Unit is one slice of canonical audio submitted in a single engine call.
// Start and End are frame offsets into the canonical buffer; End is
// exclusive. Exactly one of Data or Path is set.
type Unit struct {
	Index      int
	Start      int
	End        int
	SampleRate int
	Data       []byte // raw little-endian samples (frame strategy)
	Path       string // standalone WAV file (segment strategy)
}

// Frames returns the number of sample frames in the unit.
func (u Unit) Frames() int { return u.End - u.Start }

// Duration returns the unit's playback length.
func (u Unit) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(u.Frames()) * int64(time.Second) / int64(u.SampleRate))
}

// Strategy partitions canonical audio into contiguous, non-overlapping units
// that together cover the whole buffer, ordered by Index.
type Strategy interface {
	Name() string
	Split(scope *artifact.Scope, buf *audio.Buffer) ([]Unit, error)
}

// Config holds the tunables of both strategies.
type Config struct {
	FrameSamples int
	Window       time.Duration
}

// For returns the strategy matching the engine kind: frames for a streaming
// recognizer, segments for a batch engine.
func (c Config) For(streaming bool) Strategy {
	if streaming {
		n := c.FrameSamples
		if n <= 0 {
			n = DefaultFrameSamples
		}
		return &FrameStrategy{FrameSamples: n}
	}
	w := c.Window
	if w <= 0 {
		w = DefaultWindow
	}
	return &SegmentStrategy{Window: w}
}
