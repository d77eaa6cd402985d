package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// WAVInfo is the header information of a WAV file.
type WAVInfo struct {
	AudioFormat   uint16  `json:"audio_format"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	DataSize      int     `json:"data_size_bytes"`
	Duration      float64 `json:"duration_seconds"`
}

// IsWAV reports whether head starts with a RIFF/WAVE signature.
func IsWAV(head []byte) bool {
	return len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE"
}

// WriteWAV writes b as a WAV stream in b.Format.Encoding. Float32 buffers are
// written as IEEE float (format tag 3).
func WriteWAV(w io.WriteSeeker, b *Buffer) error {
	if b.Format.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", b.Format.SampleRate)
	}
	if b.Format.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", b.Format.Channels)
	}

	audioFormat := wavFormatPCM
	data := make([]int, len(b.Samples))
	if b.Format.Encoding == EncodingFloat32 {
		audioFormat = wavFormatFloat
		for i, f := range b.Float32() {
			data[i] = int(int32(math.Float32bits(f)))
		}
	} else {
		for i, s := range b.Samples {
			data[i] = int(s)
		}
	}

	enc := wav.NewEncoder(w, b.Format.SampleRate, b.Format.Encoding.BitsPerSample(), b.Format.Channels, audioFormat)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: b.Format.Channels, SampleRate: b.Format.SampleRate},
		Data:           data,
		SourceBitDepth: b.Format.Encoding.BitsPerSample(),
	}
	// Write also emits the header, so it runs even for an empty buffer.
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("write audio data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV header: %w", err)
	}
	return nil
}

// EncodeWAV returns b as an in-memory WAV file.
func EncodeWAV(b *Buffer) ([]byte, error) {
	m := &memFile{buf: make([]byte, 0, 44+len(b.Samples)*b.Format.Encoding.BitsPerSample()/8)}
	if err := WriteWAV(m, b); err != nil {
		return nil, err
	}
	return m.buf, nil
}

// openWAV reads the header of data and positions the decoder at the start of
// the data chunk.
func openWAV(data []byte) (*wav.Decoder, *WAVInfo, error) {
	if !IsWAV(data) {
		return nil, nil, ErrNotWAV
	}
	r := bytes.NewReader(data)
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, nil, fmt.Errorf("invalid WAV file: %w", err)
	}
	info := &WAVInfo{
		AudioFormat:   d.WavAudioFormat,
		Channels:      int(d.NumChans),
		SampleRate:    int(d.SampleRate),
		BitsPerSample: int(d.BitDepth),
	}
	if info.Channels <= 0 {
		return nil, nil, fmt.Errorf("invalid WAV file: channel count %d", info.Channels)
	}
	if info.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("invalid WAV file: sample rate %d", info.SampleRate)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, nil, fmt.Errorf("invalid WAV file: %w", err)
	}

	// Streamed writers leave 0xFFFFFFFF in the size field.
	info.DataSize = d.PCMSize
	if info.DataSize < 0 || info.DataSize > r.Len() {
		info.DataSize = r.Len()
	}
	d.PCMChunk.R = io.LimitReader(d.PCMChunk.R, int64(info.DataSize))

	if frame := info.Channels * info.BitsPerSample / 8; frame > 0 {
		info.Duration = float64(info.DataSize/frame) / float64(info.SampleRate)
	}
	return d, info, nil
}

// ParseWAVInfo reads only the header information from WAV data.
func ParseWAVInfo(data []byte) (*WAVInfo, error) {
	_, info, err := openWAV(data)
	return info, err
}

// ReadWAVInfo opens a WAV file and returns its header information.
func ReadWAVInfo(path string) (*WAVInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWAVInfo(data)
}

// DecodeWAV decodes PCM (8/16/24/32-bit integer) or 32/64-bit float WAV data
// into an interleaved int16 buffer at the file's own rate and channel count.
func DecodeWAV(data []byte) (*Buffer, error) {
	d, info, err := openWAV(data)
	if err != nil {
		return nil, err
	}

	var samples []int16
	enc := EncodingPCM16
	switch info.AudioFormat {
	case wavFormatFloat:
		samples, err = decodeFloatPCM(d, info)
		enc = EncodingFloat32
	case wavFormatPCM, wavFormatExtensible:
		samples, err = decodeIntPCM(d, info)
	default:
		err = fmt.Errorf("unsupported WAV encoding: format %d, %d bits", info.AudioFormat, info.BitsPerSample)
	}
	if err != nil {
		return nil, err
	}

	return &Buffer{
		Format:  Format{SampleRate: info.SampleRate, Channels: info.Channels, Encoding: enc},
		Samples: samples,
	}, nil
}

func decodeIntPCM(d *wav.Decoder, info *WAVInfo) ([]int16, error) {
	var shift func(int) int16
	switch info.BitsPerSample {
	case 8:
		// 8-bit WAV is unsigned.
		shift = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		shift = func(v int) int16 { return int16(v) }
	case 24:
		shift = func(v int) int16 { return int16(v >> 8) }
	case 32:
		shift = func(v int) int16 { return int16(v >> 16) }
	default:
		return nil, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", info.AudioFormat, info.BitsPerSample)
	}

	ib, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}
	// A trailing partial sample or frame is dropped.
	n := info.DataSize / (info.BitsPerSample / 8)
	n -= n % info.Channels
	if n > len(ib.Data) {
		n = len(ib.Data) - len(ib.Data)%info.Channels
	}
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = shift(ib.Data[i])
	}
	return samples, nil
}

// decodeFloatPCM reads IEEE float samples, which the wav decoder would
// otherwise return as raw integer bit patterns.
func decodeFloatPCM(d *wav.Decoder, info *WAVInfo) ([]int16, error) {
	var convert func([]byte) int16
	switch info.BitsPerSample {
	case 32:
		convert = func(p []byte) int16 {
			return floatToPCM16(float64(math.Float32frombits(binary.LittleEndian.Uint32(p))))
		}
	case 64:
		convert = func(p []byte) int16 {
			return floatToPCM16(math.Float64frombits(binary.LittleEndian.Uint64(p)))
		}
	default:
		return nil, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", info.AudioFormat, info.BitsPerSample)
	}

	pcm, err := io.ReadAll(d.PCMChunk)
	if err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}
	width := info.BitsPerSample / 8
	frame := width * info.Channels
	usable := len(pcm) - len(pcm)%frame
	samples := make([]int16, usable/width)
	for i := range samples {
		samples[i] = convert(pcm[i*width : (i+1)*width])
	}
	return samples, nil
}

func floatToPCM16(f float64) int16 {
	v := math.Round(f * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// memFile is an in-memory io.WriteSeeker for the wav encoder, which seeks
// back to patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
