package chunk

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/audio"
)

func newScope(t *testing.T) (*artifact.Manager, *artifact.Scope) {
	t.Helper()
	m, err := artifact.NewManager(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s, err := m.Open("test")
	if err != nil {
		t.Fatal(err)
	}
	return m, s
}

func silence(rate int, d time.Duration) *audio.Buffer {
	n := int(int64(rate) * int64(d) / int64(time.Second))
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	return &audio.Buffer{Format: audio.Canonical(rate, audio.EncodingPCM16), Samples: samples}
}

// checkCoverage asserts units are contiguous, ordered and cover [0, frames).
func checkCoverage(t *testing.T, units []Unit, frames int) {
	t.Helper()
	pos := 0
	for i, u := range units {
		if u.Index != i {
			t.Errorf("unit %d has Index %d", i, u.Index)
		}
		if u.Start != pos {
			t.Errorf("unit %d starts at %d, want %d", i, u.Start, pos)
		}
		pos = u.End
	}
	if pos != frames {
		t.Errorf("units cover %d frames, want %d", pos, frames)
	}
}

func TestSegmentStrategy_75Seconds(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := silence(16000, 75*time.Second)
	s := &SegmentStrategy{Window: 30 * time.Second}
	units, err := s.Split(scope, buf)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	want := []time.Duration{30 * time.Second, 30 * time.Second, 15 * time.Second}
	for i, u := range units {
		if u.Duration() != want[i] {
			t.Errorf("unit %d duration = %v, want %v", i, u.Duration(), want[i])
		}
		info, err := audio.ReadWAVInfo(u.Path)
		if err != nil {
			t.Fatalf("unit %d: %v", i, err)
		}
		if info.Channels != 1 || info.SampleRate != 16000 || info.BitsPerSample != 16 {
			t.Errorf("unit %d header = %+v", i, info)
		}
		if time.Duration(info.Duration*float64(time.Second)) != want[i] {
			t.Errorf("unit %d file duration = %vs, want %v", i, info.Duration, want[i])
		}
	}
	checkCoverage(t, units, buf.Frames())
}

func TestSegmentStrategy_CeilProperty(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	window := 2 * time.Second
	for _, d := range []time.Duration{
		time.Millisecond,
		1999 * time.Millisecond,
		2 * time.Second,
		2001 * time.Millisecond,
		7 * time.Second,
		9500 * time.Millisecond,
	} {
		buf := silence(8000, d)
		s := &SegmentStrategy{Window: window}
		units, err := s.Split(scope, buf)
		if err != nil {
			t.Fatalf("%v: %v", d, err)
		}
		wantCount := int((d + window - 1) / window)
		if len(units) != wantCount {
			t.Errorf("%v: %d units, want %d", d, len(units), wantCount)
		}
		var sum time.Duration
		for _, u := range units {
			if u.Duration() > window {
				t.Errorf("%v: unit %d longer than window", d, u.Index)
			}
			sum += u.Duration()
			scope.Release(SegmentName(u.Index))
		}
		if sum != buf.Duration() {
			t.Errorf("%v: durations sum to %v, want %v", d, sum, buf.Duration())
		}
		checkCoverage(t, units, buf.Frames())
	}
}

func TestSegmentStrategy_ZeroLengthYieldsOneUnit(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := &audio.Buffer{Format: audio.Canonical(16000, audio.EncodingPCM16)}
	units, err := (&SegmentStrategy{Window: 30 * time.Second}).Split(scope, buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Frames() != 0 {
		t.Errorf("frames = %d, want 0", units[0].Frames())
	}
	if _, err := os.Stat(units[0].Path); err != nil {
		t.Errorf("empty segment file should exist: %v", err)
	}
}

func TestSegmentStrategy_FilesRemovedOnClose(t *testing.T) {
	m, scope := newScope(t)

	units, err := (&SegmentStrategy{Window: time.Second}).Split(scope, silence(16000, 3500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	scope.Close()

	for _, u := range units {
		if _, err := os.Stat(u.Path); !os.IsNotExist(err) {
			t.Errorf("segment %s still exists", u.Path)
		}
	}
	if st := m.Stats(); st.Registered != 4 || st.Released != 4 {
		t.Errorf("stats = %+v, want 4 registered / 4 released", st)
	}
}

func TestSegmentStrategy_Float32Segments(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := silence(16000, time.Second)
	buf.Format.Encoding = audio.EncodingFloat32
	units, err := (&SegmentStrategy{Window: time.Second}).Split(scope, buf)
	if err != nil {
		t.Fatal(err)
	}
	info, err := audio.ReadWAVInfo(units[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.BitsPerSample != 32 || info.AudioFormat != 3 {
		t.Errorf("header = %+v, want float32", info)
	}
}

func TestFrameStrategy_FixedFrames(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := silence(16000, time.Second) // 16000 samples
	units, err := (&FrameStrategy{FrameSamples: 4000}).Split(scope, buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}
	for _, u := range units {
		if len(u.Data) != 8000 {
			t.Errorf("unit %d has %d bytes, want 8000", u.Index, len(u.Data))
		}
	}
	checkCoverage(t, units, buf.Frames())
}

func TestFrameStrategy_FloatTargetStillPCM16(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := silence(16000, time.Second)
	buf.Format.Encoding = audio.EncodingFloat32
	units, err := (&FrameStrategy{FrameSamples: 4000}).Split(scope, buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}
	if len(units[0].Data) != 8000 {
		t.Errorf("frame 0 = %d bytes for 4000 samples, want 8000", len(units[0].Data))
	}
	// Sample 1 of silence() is 1.
	if units[0].Data[2] != 1 || units[0].Data[3] != 0 {
		t.Errorf("sample 1 bytes = % x, want 01 00", units[0].Data[2:4])
	}
}

func TestFrameStrategy_ShortLastFrame(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := silence(16000, 625*time.Millisecond) // 10000 samples
	units, err := (&FrameStrategy{FrameSamples: 4000}).Split(scope, buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if units[2].Frames() != 2000 || len(units[2].Data) != 4000 {
		t.Errorf("last unit = %d frames / %d bytes, want 2000 / 4000", units[2].Frames(), len(units[2].Data))
	}
	checkCoverage(t, units, buf.Frames())
}

func TestFrameStrategy_ZeroLengthYieldsNoUnits(t *testing.T) {
	_, scope := newScope(t)
	defer scope.Close()

	buf := &audio.Buffer{Format: audio.Canonical(16000, audio.EncodingPCM16)}
	units, err := (&FrameStrategy{FrameSamples: 4000}).Split(scope, buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 0 {
		t.Errorf("got %d units, want 0", len(units))
	}
}

func TestFrameStrategy_ReleaseDropsBuffers(t *testing.T) {
	_, scope := newScope(t)

	units, _ := (&FrameStrategy{FrameSamples: 100}).Split(scope, silence(16000, 50*time.Millisecond))
	if len(units) != 8 || units[0].Data == nil {
		t.Fatalf("got %d units before close", len(units))
	}
	scope.Close()
	for _, u := range units {
		if u.Data != nil {
			t.Errorf("unit %d still holds frame data after Close", u.Index)
		}
	}
	if st := scope.Stats(); st.Pending != 0 {
		t.Errorf("pending = %d, want 0", st.Pending)
	}
}

func TestFrameReader_ZeroLengthReadAtEnd(t *testing.T) {
	buf := &audio.Buffer{Format: audio.Canonical(16000, audio.EncodingPCM16), Samples: []int16{1, 2, 3}}
	r := NewFrameReader(buf, 2)
	if got := len(r.Read()); got != 4 {
		t.Errorf("first read = %d bytes, want 4", got)
	}
	if got := len(r.Read()); got != 2 {
		t.Errorf("second read = %d bytes, want 2", got)
	}
	if got := len(r.Read()); got != 0 {
		t.Errorf("third read = %d bytes, want 0", got)
	}
}

func TestConfig_For(t *testing.T) {
	if s := (Config{}).For(true); s.Name() != "frames" {
		t.Errorf("streaming strategy = %s, want frames", s.Name())
	}
	if s := (Config{}).For(false); s.Name() != "segments" {
		t.Errorf("batch strategy = %s, want segments", s.Name())
	}
	s := (Config{Window: 10 * time.Second}).For(false).(*SegmentStrategy)
	if s.Window != 10*time.Second {
		t.Errorf("window = %v, want 10s", s.Window)
	}
}
