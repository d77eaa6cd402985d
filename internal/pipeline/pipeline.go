// Package pipeline runs one upload end to end: materialize, decode to
// canonical audio, split into units, run inference unit by unit, and
// aggregate the partial texts in unit order. Every transient artifact lives
// in a per-request scope that is closed before Transcribe returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/artifact"
	"github.com/snarg/audioscribe/internal/audio"
	"github.com/snarg/audioscribe/internal/chunk"
	"github.com/snarg/audioscribe/internal/failure"
	"github.com/snarg/audioscribe/internal/metrics"
	"github.com/snarg/audioscribe/internal/transcribe"
	"golang.org/x/sync/errgroup"
)

// Upload is the raw audio handed over by the transport.
type Upload struct {
	Data        io.Reader
	Filename    string
	ContentType string
	Language    string // empty = configured default
	RequestID   string
}

// Partial is the text produced for one unit.
type Partial struct {
	Index int
	Text  string
}

// Result is a successful transcription.
type Result struct {
	Text          string
	Units         int
	Strategy      string
	Engine        string
	Language      string // language hint sent to the engine
	Detected      string // language reported by the engine, if any
	Words         []transcribe.Word
	Duration      time.Duration // wall time of the whole request
	AudioDuration time.Duration // length of the canonical audio
}

// Outcome is what a Publisher receives after every request.
type Outcome struct {
	RequestID string
	Status    string // "ok" or "error"
	Kind      string // failure kind, empty on success
	Error     string
	TextLen   int
	Units     int
	Duration  time.Duration
}

// Publisher receives request outcomes. Implementations must not block.
type Publisher interface {
	PublishOutcome(o Outcome)
}

// Options configures a Pipeline.
type Options struct {
	Decoder   *audio.Decoder
	Engine    *transcribe.Engine
	Chunking  chunk.Config
	Artifacts *artifact.Manager
	Language  string

	// Defaults are the engine options sent with every unit. Language is
	// replaced by the request's language hint.
	Defaults transcribe.TranscribeOpts

	// Concurrency bounds parallel unit inference for batch engines.
	// Values below 2 keep dispatch sequential.
	Concurrency int

	Publisher Publisher // optional
	Log       zerolog.Logger
}

// Pipeline is safe for concurrent use; each call to Transcribe owns its own
// scope and shares only the read-only engine handle.
type Pipeline struct {
	decoder     *audio.Decoder
	engine      *transcribe.Engine
	strategy    chunk.Strategy
	artifacts   *artifact.Manager
	language    string
	defaults    transcribe.TranscribeOpts
	concurrency int
	publisher   Publisher
	log         zerolog.Logger

	inFlight atomic.Int64
}

// New creates a pipeline. The chunking strategy follows the engine kind.
func New(opts Options) *Pipeline {
	conc := opts.Concurrency
	if conc < 1 {
		conc = 1
	}
	return &Pipeline{
		decoder:     opts.Decoder,
		engine:      opts.Engine,
		strategy:    opts.Chunking.For(opts.Engine.Streaming()),
		artifacts:   opts.Artifacts,
		language:    opts.Language,
		defaults:    opts.Defaults,
		concurrency: conc,
		publisher:   opts.Publisher,
		log:         opts.Log,
	}
}

// Engine returns the inference engine handle.
func (p *Pipeline) Engine() *transcribe.Engine { return p.engine }

// Strategy returns the chunking strategy name.
func (p *Pipeline) Strategy() string { return p.strategy.Name() }

// Decoder returns the canonical audio decoder.
func (p *Pipeline) Decoder() *audio.Decoder { return p.decoder }

// InFlight returns the number of requests being transcribed.
func (p *Pipeline) InFlight() int { return int(p.inFlight.Load()) }

// LiveScopes returns the number of open artifact scopes.
func (p *Pipeline) LiveScopes() int { return p.artifacts.LiveScopes() }

// Transcribe runs the whole pipeline for one upload. Errors are tagged with a
// failure kind; no partial text is ever returned alongside an error.
func (p *Pipeline) Transcribe(ctx context.Context, up Upload) (*Result, error) {
	start := time.Now()
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	lang := up.Language
	if lang == "" {
		lang = p.language
	}
	log := p.log.With().Str("request_id", up.RequestID).Logger()

	res, err := p.run(ctx, log, up, lang)
	elapsed := time.Since(start)
	p.record(log, up, res, err, elapsed)
	if err != nil {
		return nil, err
	}
	res.Duration = elapsed
	return res, nil
}

// run owns the scope so that every artifact is gone before the outcome is
// recorded.
func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, up Upload, lang string) (*Result, error) {
	if up.Data == nil {
		return nil, failure.Errorf(failure.Upload, "upload", "no audio data")
	}

	scope, err := p.artifacts.Open(up.RequestID)
	if err != nil {
		return nil, failure.New(failure.Internal, "open scope", err)
	}
	defer scope.Close()

	hint := audio.Hint{Filename: up.Filename, ContentType: up.ContentType}
	uploadName := "upload" + hint.Ext()
	inputPath, err := p.materialize(scope, uploadName, up.Data)
	if err != nil {
		scope.Release(uploadName)
		return nil, err
	}

	buf, err := p.decoder.Decode(ctx, scope, inputPath, hint)
	scope.Release(uploadName)
	if err != nil {
		return nil, err
	}
	audioDuration := buf.Duration()
	rate := buf.Format.SampleRate
	if err := scope.Track("canonical", func() error { buf.Samples = nil; return nil }); err != nil {
		return nil, failure.New(failure.Internal, "track canonical audio", err)
	}

	units, err := p.strategy.Split(scope, buf)
	if err != nil {
		return nil, failure.New(failure.Internal, "split", err)
	}
	// Segment files and frames now hold the audio.
	scope.Release("canonical")
	metrics.UnitsTotal.WithLabelValues(p.strategy.Name()).Add(float64(len(units)))

	log.Debug().
		Str("strategy", p.strategy.Name()).
		Int("units", len(units)).
		Dur("audio", audioDuration).
		Msg("audio split")

	opts := p.defaults
	opts.Language = lang
	var res *Result
	if p.engine.Streaming() {
		res, err = p.stream(ctx, log, units, rate, opts)
	} else {
		res, err = p.batch(ctx, scope, units, opts)
	}
	if err != nil {
		return nil, err
	}

	res.Units = len(units)
	res.Strategy = p.strategy.Name()
	res.Engine = p.engine.Name()
	res.Language = lang
	res.AudioDuration = audioDuration
	return res, nil
}

func (p *Pipeline) materialize(scope *artifact.Scope, name string, r io.Reader) (string, error) {
	f, err := scope.Create(name)
	if err != nil {
		return "", failure.New(failure.Internal, "store upload", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", failure.New(failure.Upload, "read upload", err)
	}
	if err := f.Close(); err != nil {
		return "", failure.New(failure.Internal, "store upload", err)
	}
	return f.Name(), nil
}

// stream feeds frames to one recognizer session in order. Texts returned
// along the way and the final flush are joined with single spaces.
func (p *Pipeline) stream(ctx context.Context, log zerolog.Logger, units []chunk.Unit, rate int, opts transcribe.TranscribeOpts) (*Result, error) {
	rec := p.engine.Recognizer()
	sess, err := rec.NewSession(ctx, rate, opts)
	if err != nil {
		return nil, failure.New(failure.Inference, "open session", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debug().Err(err).Msg("recognizer session close")
		}
	}()

	observe := metrics.UnitInferenceDuration.WithLabelValues(rec.Name())
	parts := make([]Partial, 0, len(units)+1)
	for _, u := range units {
		t0 := time.Now()
		text, err := sess.AcceptFrame(ctx, u.Data)
		observe.Observe(time.Since(t0).Seconds())
		if err != nil {
			return nil, failure.New(failure.Inference, fmt.Sprintf("frame %d", u.Index), err)
		}
		parts = append(parts, Partial{Index: u.Index, Text: text})
	}

	final, err := sess.Flush(ctx)
	if err != nil {
		return nil, failure.New(failure.Inference, "flush", err)
	}
	parts = append(parts, Partial{Index: len(units), Text: final})
	return &Result{Text: JoinWords(parts)}, nil
}

// batch transcribes each segment file exactly once. With concurrency above
// one, units run in parallel but results land in an index-addressed slice.
// The first failure cancels the rest and discards every partial text.
func (p *Pipeline) batch(ctx context.Context, scope *artifact.Scope, units []chunk.Unit, opts transcribe.TranscribeOpts) (*Result, error) {
	prov := p.engine.Provider()
	observe := metrics.UnitInferenceDuration.WithLabelValues(prov.Name())
	parts := make([]Partial, len(units))
	resps := make([]*transcribe.Response, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, u := range units {
		u := u
		g.Go(func() error {
			defer scope.Release(chunk.SegmentName(u.Index))
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			resp, err := prov.Transcribe(gctx, u.Path, opts)
			observe.Observe(time.Since(t0).Seconds())
			if err != nil {
				return failure.New(failure.Inference, fmt.Sprintf("unit %d", u.Index), err)
			}
			parts[u.Index] = Partial{Index: u.Index, Text: resp.Text}
			resps[u.Index] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !failure.Is(err, failure.Inference) {
			err = failure.New(failure.Inference, "batch", err)
		}
		return nil, err
	}
	return &Result{
		Text:     JoinLines(parts),
		Detected: detectedLanguage(resps),
		Words:    MergeWords(units, resps),
	}, nil
}

// MergeWords concatenates per-unit word timestamps in unit order, shifting
// each unit's words by the unit's offset in the whole recording.
func MergeWords(units []chunk.Unit, resps []*transcribe.Response) []transcribe.Word {
	var words []transcribe.Word
	for i, u := range units {
		if i >= len(resps) || resps[i] == nil || u.SampleRate <= 0 {
			continue
		}
		offset := float64(u.Start) / float64(u.SampleRate)
		for _, w := range resps[i].Words {
			w.Start += offset
			w.End += offset
			words = append(words, w)
		}
	}
	return words
}

// detectedLanguage returns the first language an engine reported.
func detectedLanguage(resps []*transcribe.Response) string {
	for _, r := range resps {
		if r != nil && r.Language != "" {
			return r.Language
		}
	}
	return ""
}

// JoinLines orders partials by Index and joins their trimmed texts with
// newlines, one line per unit. Surrounding blank lines are dropped.
func JoinLines(parts []Partial) string {
	sorted := byIndex(parts)
	lines := make([]string, len(sorted))
	for i, pr := range sorted {
		lines[i] = strings.TrimSpace(pr.Text)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// JoinWords orders partials by Index and joins the non-empty texts with
// single spaces.
func JoinWords(parts []Partial) string {
	var words []string
	for _, pr := range byIndex(parts) {
		if t := strings.TrimSpace(pr.Text); t != "" {
			words = append(words, t)
		}
	}
	return strings.Join(words, " ")
}

func byIndex(parts []Partial) []Partial {
	sorted := make([]Partial, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return sorted
}

func (p *Pipeline) record(log zerolog.Logger, up Upload, res *Result, err error, elapsed time.Duration) {
	out := Outcome{
		RequestID: up.RequestID,
		Status:    "ok",
		Duration:  elapsed,
	}
	metrics.TranscriptionDuration.WithLabelValues(p.strategy.Name()).Observe(elapsed.Seconds())

	if err != nil {
		kind := failure.KindOf(err)
		if errors.Is(err, context.Canceled) {
			log.Info().Err(err).Str("kind", kind.String()).Msg("transcription canceled")
		} else {
			log.Warn().Err(err).Str("kind", kind.String()).Msg("transcription failed")
		}
		out.Status = "error"
		out.Kind = kind.String()
		out.Error = err.Error()
		metrics.TranscriptionsTotal.WithLabelValues("error", kind.String()).Inc()
	} else {
		out.TextLen = len(res.Text)
		out.Units = res.Units
		log.Info().
			Str("engine", res.Engine).
			Str("strategy", res.Strategy).
			Int("units", res.Units).
			Int("text_len", out.TextLen).
			Dur("audio", res.AudioDuration).
			Dur("elapsed", elapsed).
			Msg("transcription complete")
		metrics.TranscriptionsTotal.WithLabelValues("ok", "").Inc()
	}

	if p.publisher != nil {
		p.publisher.PublishOutcome(out)
	}
}
