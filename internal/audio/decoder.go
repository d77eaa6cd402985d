package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/failure"
	"github.com/snarg/audioscribe/internal/metrics"
)

// canonicalName is the scope artifact holding transcoder output.
const canonicalName = "canonical.wav"

// Decoder produces canonical audio from an uploaded file.
//
// WAV input is decoded in process: channels are averaged to mono and the
// rate is converted by linear interpolation. Any other container goes
// through the external transcoder, whose output is re-opened and its header
// checked against the target before it is trusted.
type Decoder struct {
	target     Format
	transcoder Transcoder
	log        zerolog.Logger
}

// NewDecoder creates a decoder. tc may be nil, in which case only WAV input
// can be decoded.
func NewDecoder(target Format, tc Transcoder, log zerolog.Logger) *Decoder {
	return &Decoder{
		target:     target,
		transcoder: tc,
		log:        log,
	}
}

// Target returns the canonical format the decoder produces.
func (d *Decoder) Target() Format { return d.target }

// TranscoderName returns the external transcoder in use, or "none".
func (d *Decoder) TranscoderName() string {
	if d.transcoder == nil {
		return "none"
	}
	return d.transcoder.Name()
}

// Decode reads inputPath and returns canonical audio. Any intermediate file
// is registered with scope before it is written.
func (d *Decoder) Decode(ctx context.Context, scope *artifact.Scope, inputPath string, hint Hint) (*Buffer, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, failure.New(failure.Decode, "read input", err)
	}
	if len(data) == 0 {
		return nil, failure.Errorf(failure.Decode, "read input", "empty audio input")
	}

	var (
		buf  *Buffer
		path string
	)
	if IsWAV(data) {
		src, werr := DecodeWAV(data)
		switch {
		case werr == nil:
			path = "native"
			if src.Format.Channels == 1 && src.Format.SampleRate == d.target.SampleRate && src.Format.Encoding == EncodingPCM16 {
				path = "passthrough"
			}
			d.log.Debug().
				Str("hint", hint.String()).
				Str("source_format", src.Format.String()).
				Str("decode_path", path).
				Msg("decoding wav in process")
			buf = Normalize(src, d.target)
		case d.transcoder == nil:
			return nil, failure.New(failure.Decode, "parse wav", werr)
		default:
			d.log.Debug().Err(werr).Msg("wav not decodable in process, transcoding")
		}
	}

	if buf == nil {
		buf, err = d.transcode(ctx, scope, inputPath, hint)
		if err != nil {
			return nil, err
		}
		path = d.transcoder.Name()
	}

	if err := CheckFormat(buf.Format, d.target); err != nil {
		return nil, failure.New(failure.FormatValidation, "validate", err)
	}

	metrics.DecodesTotal.WithLabelValues(path).Inc()
	metrics.AudioSecondsTotal.Add(buf.Duration().Seconds())
	return buf, nil
}

func (d *Decoder) transcode(ctx context.Context, scope *artifact.Scope, inputPath string, hint Hint) (*Buffer, error) {
	if d.transcoder == nil {
		return nil, failure.Errorf(failure.Decode, "transcode", "no transcoder available for %s input", hint)
	}

	out, err := scope.Path(canonicalName)
	if err != nil {
		return nil, failure.New(failure.Internal, "transcode", err)
	}
	defer scope.Release(canonicalName)

	if err := d.transcoder.Transcode(ctx, inputPath, out, d.target.SampleRate); err != nil {
		return nil, failure.New(failure.Decode, "transcode", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, failure.New(failure.FormatValidation, "reopen transcoder output", err)
	}
	info, err := ParseWAVInfo(data)
	if err != nil {
		return nil, failure.New(failure.FormatValidation, "reopen transcoder output", err)
	}
	if err := d.checkHeader(info); err != nil {
		return nil, failure.New(failure.FormatValidation, "validate transcoder output", err)
	}

	buf, err := DecodeWAV(data)
	if err != nil {
		return nil, failure.New(failure.FormatValidation, "decode transcoder output", err)
	}
	buf.Format.Encoding = d.target.Encoding

	d.log.Debug().
		Str("hint", hint.String()).
		Str("transcoder", d.transcoder.Name()).
		Float64("duration_s", info.Duration).
		Msg("transcoded upload")
	return buf, nil
}

// checkHeader verifies the transcoder honoured mono, 16-bit PCM and the
// target rate.
func (d *Decoder) checkHeader(info *WAVInfo) error {
	if info.AudioFormat != wavFormatPCM {
		return fmt.Errorf("audio format = %d, want PCM", info.AudioFormat)
	}
	if info.Channels != 1 {
		return fmt.Errorf("channels = %d, want 1", info.Channels)
	}
	if info.BitsPerSample != 16 {
		return fmt.Errorf("sample width = %d bits, want 16", info.BitsPerSample)
	}
	if info.SampleRate != d.target.SampleRate {
		return fmt.Errorf("sample rate = %d, want %d", info.SampleRate, d.target.SampleRate)
	}
	return nil
}
