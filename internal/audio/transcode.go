package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Transcoder converts any decodable container into a canonical 16-bit mono
// WAV file at the requested rate.
type Transcoder interface {
	Name() string
	Transcode(ctx context.Context, inputPath, outputPath string, rate int) error
}

// execTranscoder runs an external binary found in PATH.
type execTranscoder struct {
	name string
	bin  string
	args func(in, out string, rate int) []string
}

func (t *execTranscoder) Name() string { return t.name }

func (t *execTranscoder) Transcode(ctx context.Context, in, out string, rate int) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, t.args(in, out, rate)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg == "" {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		return fmt.Errorf("%s: %w: %s", t.name, err, msg)
	}
	return nil
}

// ffmpeg: drop video, average channels to mono, resample, write s16le WAV
// with no metadata chunks.
func ffmpegArgs(in, out string, rate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		"-f", "wav",
		out,
	}
}

// sox: same target, handles fewer containers than ffmpeg.
func soxArgs(in, out string, rate int) []string {
	return []string{
		in,
		"-r", strconv.Itoa(rate),
		"-c", "1",
		"-b", "16",
		"-e", "signed-integer",
		out,
	}
}

// NewTranscoder resolves a transcoder by preference: "auto" tries ffmpeg and
// then sox, "ffmpeg" and "sox" require that binary, "none" disables
// transcoding (only WAV input is accepted). A nil Transcoder with a nil error
// means transcoding is disabled.
func NewTranscoder(pref string) (Transcoder, error) {
	switch strings.ToLower(pref) {
	case "none":
		return nil, nil
	case "ffmpeg":
		return lookup("ffmpeg")
	case "sox":
		return lookup("sox")
	case "", "auto":
		if t, err := lookup("ffmpeg"); err == nil {
			return t, nil
		}
		if t, err := lookup("sox"); err == nil {
			return t, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transcoder %q (supported: auto, ffmpeg, sox, none)", pref)
	}
}

func lookup(name string) (Transcoder, error) {
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	args := ffmpegArgs
	if name == "sox" {
		args = soxArgs
	}
	return &execTranscoder{name: name, bin: bin, args: args}, nil
}
