// Package trainer runs an imitation session against one reference clip:
// listening, recording attempts, playing them back and plotting the
// comparison.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/algo-mimic/analysis"
	"github.com/cwbudde/algo-mimic/clip"
	"github.com/cwbudde/algo-mimic/internal/store"
	"github.com/cwbudde/algo-mimic/library"
	"github.com/cwbudde/algo-mimic/metrics"
	"github.com/cwbudde/algo-mimic/recorder"
	"github.com/cwbudde/algo-mimic/visualize"
)

// ErrNoAttempt is returned by Playback and Visualize before anything has
// been recorded for the reference.
var ErrNoAttempt = errors.New("no attempt recorded yet")

type Options struct {
	Reference string
	Library   *library.Library
	Recorder  *recorder.Recorder
	Processor *analysis.Processor
	Plot      visualize.Options
	// Store and Metrics are optional.
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Take is a finished recording.
type Take struct {
	Clip *clip.Clip
	// Path is where the take was saved; empty for an empty take.
	Path     string
	LowLevel bool
}

type Trainer struct {
	name      string
	refPath   string
	reference *clip.Clip

	lib     *library.Library
	rec     *recorder.Recorder
	proc    *analysis.Processor
	plot    visualize.Options
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	last *Take
}

// New resolves and loads the reference clip.
func New(opts Options) (*Trainer, error) {
	if opts.Library == nil || opts.Recorder == nil || opts.Processor == nil {
		return nil, errors.New("trainer needs a library, a recorder and a processor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	path, err := opts.Library.Reference(opts.Reference)
	if err != nil {
		return nil, err
	}
	ref, err := clip.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load reference %s: %w", path, err)
	}
	if ref.SampleRate != opts.Recorder.SampleRate() {
		logger.Warn("reference sample rate differs from recording rate, attempts will be resampled for comparison",
			slog.Int("reference_rate", ref.SampleRate),
			slog.Int("recording_rate", opts.Recorder.SampleRate()),
		)
	}
	logger.Info("reference loaded",
		slog.String("reference", opts.Reference),
		slog.String("path", path),
		slog.Duration("duration", ref.Duration()),
	)

	return &Trainer{
		name:      opts.Reference,
		refPath:   path,
		reference: ref,
		lib:       opts.Library,
		rec:       opts.Recorder,
		proc:      opts.Processor,
		plot:      opts.Plot,
		store:     opts.Store,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

func (t *Trainer) ReferenceName() string { return t.name }

func (t *Trainer) ReferencePath() string { return t.refPath }

func (t *Trainer) Reference() *clip.Clip { return t.reference }

func (t *Trainer) Recorder() *recorder.Recorder { return t.rec }

// Last returns the most recent take of this session, or nil.
func (t *Trainer) Last() *Take {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Listen starts playing the reference clip and returns immediately.
func (t *Trainer) Listen(ctx context.Context) error {
	if err := t.rec.PlayAsync(ctx, t.reference); err != nil {
		return t.deviceErr(err)
	}
	if t.metrics != nil {
		t.metrics.PlaybacksTotal.WithLabelValues("reference").Inc()
	}
	return nil
}

// StartRecording begins an open-ended take, ended by Stop.
func (t *Trainer) StartRecording(ctx context.Context) error {
	return t.deviceErr(t.rec.Start(ctx))
}

// RecordFor records a take of length d, ended early by Stop or ctx, and
// saves it.
func (t *Trainer) RecordFor(ctx context.Context, d time.Duration) (*Take, error) {
	c, err := t.rec.Record(ctx, d)
	if err != nil {
		return nil, t.deviceErr(err)
	}
	return t.finish(ctx, c)
}

// Stop ends the active recording or playback. A stopped recording is saved
// and returned; otherwise the returned take is nil.
func (t *Trainer) Stop(ctx context.Context) (*Take, error) {
	wasRecording := t.rec.State() == recorder.Recording
	c, err := t.rec.Stop()
	if err != nil {
		return nil, t.deviceErr(err)
	}
	if !wasRecording || c == nil {
		return nil, nil
	}
	return t.finish(ctx, c)
}

// Wait blocks until the active playback or recording ends.
func (t *Trainer) Wait() error {
	return t.rec.Wait()
}

// finish saves c as a new attempt. Calling it again with the same clip
// returns the earlier take, so a timed recording that was stopped is not
// saved twice.
func (t *Trainer) finish(ctx context.Context, c *clip.Clip) (*Take, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last != nil && t.last.Clip == c {
		return t.last, nil
	}

	take := &Take{
		Clip:     c,
		LowLevel: !c.IsEmpty() && c.Peak() < recorder.LowLevelThreshold,
	}
	if t.metrics != nil {
		t.metrics.ObserveRecording(c.Duration(), take.LowLevel)
	}
	if c.IsEmpty() {
		t.last = take
		return take, nil
	}

	path, err := t.lib.NextAttemptPath(t.name)
	if err != nil {
		return nil, fmt.Errorf("attempt path: %w", err)
	}
	if err := c.Save(path); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	take.Path = path
	t.last = take
	t.logger.Info("attempt saved", slog.String("path", path), slog.Duration("duration", c.Duration()))
	if t.metrics != nil {
		t.metrics.AttemptsSaved.Inc()
	}

	if t.store != nil {
		_, err := t.store.AddAttempt(ctx, store.Attempt{
			Reference:  t.name,
			Path:       path,
			Samples:    c.Len(),
			SampleRate: c.SampleRate,
			Duration:   c.Duration(),
			Peak:       c.Peak(),
		})
		if err != nil {
			t.logger.Error("failed to catalog attempt", slog.String("path", path), slog.Any("error", err))
		}
	}
	return take, nil
}

// attempt returns the latest take, falling back to the most recent
// cataloged attempt from an earlier session.
func (t *Trainer) attempt(ctx context.Context) (*clip.Clip, error) {
	if last := t.Last(); last != nil {
		return last.Clip, nil
	}
	if t.store == nil {
		return nil, ErrNoAttempt
	}
	a, err := t.store.Latest(ctx, t.name)
	if errors.Is(err, store.ErrNoAttempts) {
		return nil, ErrNoAttempt
	}
	if err != nil {
		return nil, err
	}
	c, err := clip.Load(a.Path)
	if err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", a.Path, err)
	}
	t.mu.Lock()
	t.last = &Take{Clip: c, Path: a.Path, LowLevel: !c.IsEmpty() && c.Peak() < recorder.LowLevelThreshold}
	t.mu.Unlock()
	return c, nil
}

// Playback starts playing the latest attempt and returns immediately.
func (t *Trainer) Playback(ctx context.Context) error {
	c, err := t.attempt(ctx)
	if err != nil {
		return err
	}
	if err := t.rec.PlayAsync(ctx, c); err != nil {
		return t.deviceErr(err)
	}
	if t.metrics != nil {
		t.metrics.PlaybacksTotal.WithLabelValues("attempt").Inc()
	}
	return nil
}

// Visualize compares the latest attempt with the reference and writes the
// plot into the plots directory. It returns the comparison and the plot
// path.
func (t *Trainer) Visualize(ctx context.Context) (*analysis.Comparison, string, error) {
	att, err := t.attempt(ctx)
	if err != nil {
		return nil, "", err
	}
	if att.IsEmpty() {
		return nil, "", fmt.Errorf("%w: latest take is empty", ErrNoAttempt)
	}

	start := time.Now()
	cmp, err := t.proc.Compare(t.reference, att)
	if err != nil {
		return nil, "", fmt.Errorf("analyze: %w", err)
	}
	if t.metrics != nil {
		t.metrics.ObserveAnalysis(time.Since(start))
	}

	path := t.lib.PlotPath(t.name, time.Now())
	if err := visualize.RenderComparison(path, cmp, t.plot); err != nil {
		return nil, "", fmt.Errorf("render: %w", err)
	}
	if t.metrics != nil {
		t.metrics.PlotsRendered.Inc()
	}
	t.logger.Info("comparison plotted", slog.String("path", path))
	return cmp, path, nil
}

// History lists the saved attempts for the reference.
func (t *Trainer) History(ctx context.Context) ([]store.Attempt, error) {
	if t.store == nil {
		return nil, errors.New("no attempt catalog configured")
	}
	return t.store.Attempts(ctx, t.name)
}

func (t *Trainer) deviceErr(err error) error {
	if err != nil && errors.Is(err, recorder.ErrDeviceUnavailable) && t.metrics != nil {
		t.metrics.DeviceErrorsTotal.Inc()
	}
	return err
}
