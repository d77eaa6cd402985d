package chunk

import (
	"fmt"

	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/audio"
)

// FrameReader hands out fixed-size frames of raw samples. A zero-length
// frame signals the end of the stream.
type FrameReader struct {
	data      []byte
	pos       int
	frameSize int // bytes
	width     int // bytes per sample
}

// NewFrameReader reads frameSamples mono samples at a time from buf. Frames
// are always 16-bit little-endian PCM, the only sample format streaming
// recognizers accept, whatever encoding buf is exported in.
func NewFrameReader(buf *audio.Buffer, frameSamples int) *FrameReader {
	pcm := audio.Buffer{Format: buf.Format, Samples: buf.Samples}
	pcm.Format.Encoding = audio.EncodingPCM16
	width := audio.EncodingPCM16.BitsPerSample() / 8
	return &FrameReader{
		data:      pcm.Bytes(),
		frameSize: frameSamples * width,
		width:     width,
	}
}

// Read returns the next frame, possibly shorter than a full frame at the
// end, and an empty slice once the stream is exhausted.
func (r *FrameReader) Read() []byte {
	end := r.pos + r.frameSize
	if end > len(r.data) {
		end = len(r.data)
	}
	frame := r.data[r.pos:end]
	r.pos = end
	return frame
}

// Offset returns the current position in samples.
func (r *FrameReader) Offset() int { return r.pos / r.width }

// FrameStrategy slices canonical audio into raw frames for a stateful
// recognizer. Zero-length audio yields zero units.
type FrameStrategy struct {
	FrameSamples int
}

func (s *FrameStrategy) Name() string { return "frames" }

func (s *FrameStrategy) Split(scope *artifact.Scope, buf *audio.Buffer) ([]Unit, error) {
	if s.FrameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", s.FrameSamples)
	}
	if buf.Format.Channels != 1 {
		return nil, fmt.Errorf("frame strategy needs mono audio, got %d channels", buf.Format.Channels)
	}

	r := NewFrameReader(buf, s.FrameSamples)
	var units []Unit
	for {
		start := r.Offset()
		frame := r.Read()
		if len(frame) == 0 {
			break
		}
		units = append(units, Unit{
			Index:      len(units),
			Start:      start,
			End:        r.Offset(),
			SampleRate: buf.Format.SampleRate,
			Data:       frame,
		})
	}

	// All frames share one backing array; it lives until the scope closes.
	err := scope.Track("frames", func() error {
		for i := range units {
			units[i].Data = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}
