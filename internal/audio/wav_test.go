package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeWAV_PCM16(t *testing.T) {
	in := &Buffer{
		Format:  Canonical(16000, EncodingPCM16),
		Samples: []int16{0, 100, -100, math.MaxInt16, math.MinInt16},
	}
	data, err := EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) != 44+len(in.Samples)*2 {
		t.Fatalf("len = %d, want %d", len(data), 44+len(in.Samples)*2)
	}

	out, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Format != in.Format {
		t.Errorf("format = %v, want %v", out.Format, in.Format)
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Errorf("sample %d = %d, want %d", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestEncodeWAV_Float32Header(t *testing.T) {
	in := &Buffer{Format: Canonical(16000, EncodingFloat32), Samples: []int16{16384, -16384}}
	data, err := EncodeWAV(in)
	if err != nil {
		t.Fatal(err)
	}
	info, err := ParseWAVInfo(data)
	if err != nil {
		t.Fatal(err)
	}
	if info.AudioFormat != wavFormatFloat || info.BitsPerSample != 32 {
		t.Errorf("header = format %d / %d bits, want 3 / 32", info.AudioFormat, info.BitsPerSample)
	}
	first := math.Float32frombits(binary.LittleEndian.Uint32(data[44:48]))
	if first != 0.5 {
		t.Errorf("first sample = %v, want 0.5", first)
	}

	out, err := DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.Samples[0] != 16384 || out.Samples[1] != -16384 {
		t.Errorf("samples = %v, want [16384 -16384]", out.Samples)
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	data, err := EncodeWAV(&Buffer{Format: Canonical(16000, EncodingPCM16)})
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	info, err := ParseWAVInfo(data)
	if err != nil {
		t.Fatalf("ParseWAVInfo: %v", err)
	}
	if info.DataSize != 0 || info.Duration != 0 {
		t.Errorf("info = %+v, want empty", info)
	}
}

func TestDecodeWAV_SkipsExtraChunks(t *testing.T) {
	base, _ := EncodeWAV(&Buffer{Format: Canonical(8000, EncodingPCM16), Samples: []int16{1, 2, 3}})

	// Splice a JUNK chunk between fmt and data and append a trailing one.
	var buf bytes.Buffer
	buf.Write(base[:36])
	buf.WriteString("JUNK")
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.Write([]byte{'a', 'b', 'c', 'd'})
	buf.Write(base[36:])
	buf.WriteString("JUNK")
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.Write([]byte{9, 9, 9, 9})

	out, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(out.Samples) != 3 || out.Samples[2] != 3 {
		t.Errorf("samples = %v, want [1 2 3]", out.Samples)
	}
}

func TestWriteWAV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	in := &Buffer{Format: Canonical(16000, EncodingPCM16), Samples: make([]int16, 1600)}
	if err := WriteWAV(f, in); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	info, err := ReadWAVInfo(path)
	if err != nil {
		t.Fatalf("ReadWAVInfo: %v", err)
	}
	if info.DataSize != 3200 || info.Duration != 0.1 {
		t.Errorf("info = %+v, want 3200 bytes / 0.1s", info)
	}
}

func TestDecodeWAV_24Bit(t *testing.T) {
	var buf bytes.Buffer
	fmtChunk := []byte{}
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, wavFormatPCM)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 1)
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, 16000)
	fmtChunk = binary.LittleEndian.AppendUint32(fmtChunk, 16000*3)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 3)
	fmtChunk = binary.LittleEndian.AppendUint16(fmtChunk, 24)
	pcm := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0} // +0.5, -0.5

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(fmtChunk)+8+len(pcm)))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(len(fmtChunk)))
	buf.Write(fmtChunk)
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	out, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Samples[0] != 16384 || out.Samples[1] != -16384 {
		t.Errorf("samples = %v, want [16384 -16384]", out.Samples)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not_riff", []byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00")},
		{"header_only", []byte("RIFF\x04\x00\x00\x00WAVE")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWAV(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := DecodeWAV([]byte("not audio at all")); !errors.Is(err, ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": EncodingPCM16, "s16": EncodingPCM16, "F32": EncodingFloat32, "float32": EncodingFloat32} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("u8"); err == nil {
		t.Error("ParseEncoding(u8) should fail")
	}
}
