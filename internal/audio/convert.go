package audio

import "math"

// Downmix averages all channels of b into a mono buffer. A mono buffer is
// returned unchanged.
func Downmix(b *Buffer) *Buffer {
	ch := b.Format.Channels
	if ch <= 1 {
		return b
	}
	frames := b.Frames()
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < ch; c++ {
			sum += int(b.Samples[i*ch+c])
		}
		out[i] = int16(math.Round(float64(sum) / float64(ch)))
	}
	f := b.Format
	f.Channels = 1
	return &Buffer{Format: f, Samples: out}
}

// Resample converts a mono buffer to rate by linear interpolation. The
// output keeps the input's duration, truncated to whole output frames.
func Resample(b *Buffer, rate int) *Buffer {
	in := b.Format.SampleRate
	if in == rate || len(b.Samples) == 0 {
		f := b.Format
		f.SampleRate = rate
		return &Buffer{Format: f, Samples: b.Samples}
	}

	n := int(int64(len(b.Samples)) * int64(rate) / int64(in))
	out := make([]int16, n)
	step := float64(in) / float64(rate)
	last := len(b.Samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = b.Samples[last]
			continue
		}
		frac := pos - float64(j)
		v := float64(b.Samples[j])*(1-frac) + float64(b.Samples[j+1])*frac
		out[i] = int16(math.Round(v))
	}

	f := b.Format
	f.SampleRate = rate
	return &Buffer{Format: f, Samples: out}
}

// Normalize downmixes and resamples b into target. Samples stay int16; the
// target encoding only changes how the buffer is exported.
func Normalize(b *Buffer, target Format) *Buffer {
	out := Resample(Downmix(b), target.SampleRate)
	out.Format.Encoding = target.Encoding
	return out
}
