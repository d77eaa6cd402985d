package chunk

import (
	"fmt"
	"time"

	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/audio"
)

// SegmentStrategy cuts canonical audio into fixed-duration windows and
// writes each one as a standalone WAV file in the request scope. The last
// window holds whatever remains. Zero-length audio still yields one (empty)
// unit so the caller always gets a result line.
type SegmentStrategy struct {
	Window time.Duration
}

func (s *SegmentStrategy) Name() string { return "segments" }

// WindowFrames returns the window length in sample frames at rate.
func (s *SegmentStrategy) WindowFrames(rate int) int {
	return int(int64(rate) * int64(s.Window) / int64(time.Second))
}

// Count returns ceil(frames / window), and at least one.
func (s *SegmentStrategy) Count(frames, rate int) int {
	w := s.WindowFrames(rate)
	if w <= 0 || frames == 0 {
		return 1
	}
	return (frames + w - 1) / w
}

func (s *SegmentStrategy) Split(scope *artifact.Scope, buf *audio.Buffer) ([]Unit, error) {
	rate := buf.Format.SampleRate
	w := s.WindowFrames(rate)
	if w <= 0 {
		return nil, fmt.Errorf("segment window %v is shorter than one sample at %d Hz", s.Window, rate)
	}

	frames := buf.Frames()
	count := s.Count(frames, rate)
	units := make([]Unit, 0, count)
	for i := 0; i < count; i++ {
		start := i * w
		end := start + w
		if end > frames {
			end = frames
		}

		path, err := s.write(scope, i, buf.Slice(start, end))
		if err != nil {
			return nil, err
		}
		units = append(units, Unit{
			Index:      i,
			Start:      start,
			End:        end,
			SampleRate: rate,
			Path:       path,
		})
	}
	return units, nil
}

func (s *SegmentStrategy) write(scope *artifact.Scope, index int, seg *audio.Buffer) (string, error) {
	f, err := scope.Create(SegmentName(index))
	if err != nil {
		return "", fmt.Errorf("create segment %d: %w", index, err)
	}
	if err := audio.WriteWAV(f, seg); err != nil {
		f.Close()
		return "", fmt.Errorf("write segment %d: %w", index, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close segment %d: %w", index, err)
	}
	return f.Name(), nil
}

// SegmentName is the artifact name of segment index.
func SegmentName(index int) string {
	return fmt.Sprintf("seg_%04d.wav", index)
}
