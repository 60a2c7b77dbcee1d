// Package recorder captures audio from an input device into memory and
// plays clips back through an output device. One operation runs at a time.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/algo-mimic/clip"
)

var (
	// ErrBusy is returned when an operation is requested while another is
	// still running.
	ErrBusy = errors.New("recorder busy")
	// ErrDeviceUnavailable is returned when the selected device does not
	// exist, lacks the needed channels, or cannot be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrEmptyClip is returned when asked to play a clip with no samples.
	ErrEmptyClip = errors.New("clip is empty")
)

// LowLevelThreshold is the peak below which a finished recording is
// reported as too quiet.
const LowLevelThreshold = 0.01

type State int

const (
	Idle State = iota
	Recording
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Recorder.
type Options struct {
	SampleRate int
	// ChunkSize is the number of frames moved per device read or write.
	ChunkSize int
	Logger    *slog.Logger
}

// ProgressFunc receives the number of samples captured so far and the
// target count, which is 0 for open-ended recordings.
type ProgressFunc func(captured, total int)

type Recorder struct {
	backend    Backend
	sampleRate int
	chunk      int
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	input    *DeviceInfo
	output   *DeviceInfo
	cancel   context.CancelFunc
	done     chan struct{}
	last     *clip.Clip
	err      error
	progress ProgressFunc
}

func New(backend Backend, opts Options) (*Recorder, error) {
	if backend == nil {
		return nil, errors.New("nil backend")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", clip.ErrInvalidSampleRate, opts.SampleRate)
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", opts.ChunkSize)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		backend:    backend,
		sampleRate: opts.SampleRate,
		chunk:      opts.ChunkSize,
		logger:     logger,
	}, nil
}

func (r *Recorder) SampleRate() int { return r.sampleRate }

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetProgress installs fn to be called from the capture goroutine after
// every chunk. A nil fn removes it.
func (r *Recorder) SetProgress(fn ProgressFunc) {
	r.mu.Lock()
	r.progress = fn
	r.mu.Unlock()
}

// Devices lists the devices known to the backend.
func (r *Recorder) Devices() ([]DeviceInfo, error) {
	devices, err := r.backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return devices, nil
}

// Input returns the selected input device, choosing one automatically if
// none was selected yet.
func (r *Recorder) Input() (DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputLocked()
}

// Output is the playback counterpart of Input.
func (r *Recorder) Output() (DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputLocked()
}

// SelectInput selects the capture device by name. Names match exactly
// (ignoring case) or as a unique substring. An empty name selects
// automatically: the first device whose name mentions "mic", else the
// backend default.
func (r *Recorder) SelectInput(name string) (DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		r.input = nil
		return r.inputLocked()
	}
	dev, err := r.resolve(name, true)
	if err != nil {
		return DeviceInfo{}, err
	}
	r.input = &dev
	r.logger.Info("input device selected", slog.String("device", dev.Name), slog.Int("index", dev.Index))
	return dev, nil
}

// SelectOutput selects the playback device by name. An empty name selects
// the backend default.
func (r *Recorder) SelectOutput(name string) (DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		r.output = nil
		return r.outputLocked()
	}
	dev, err := r.resolve(name, false)
	if err != nil {
		return DeviceInfo{}, err
	}
	r.output = &dev
	r.logger.Info("output device selected", slog.String("device", dev.Name), slog.Int("index", dev.Index))
	return dev, nil
}

func (r *Recorder) SelectInputIndex(i int) (DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, err := r.byIndex(i, true)
	if err != nil {
		return DeviceInfo{}, err
	}
	r.input = &dev
	return dev, nil
}

func (r *Recorder) SelectOutputIndex(i int) (DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, err := r.byIndex(i, false)
	if err != nil {
		return DeviceInfo{}, err
	}
	r.output = &dev
	return dev, nil
}

func (r *Recorder) inputLocked() (DeviceInfo, error) {
	if r.input != nil {
		return *r.input, nil
	}
	devices, err := r.backend.Devices()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), "mic") {
			r.input = &d
			r.logger.Info("input device auto-selected", slog.String("device", d.Name))
			return d, nil
		}
	}
	d, err := r.backend.DefaultInput()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("%w: no default input: %w", ErrDeviceUnavailable, err)
	}
	if d.MaxInputChannels < 1 {
		return DeviceInfo{}, fmt.Errorf("%w: %q has no input channels", ErrDeviceUnavailable, d.Name)
	}
	r.input = &d
	return d, nil
}

func (r *Recorder) outputLocked() (DeviceInfo, error) {
	if r.output != nil {
		return *r.output, nil
	}
	d, err := r.backend.DefaultOutput()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("%w: no default output: %w", ErrDeviceUnavailable, err)
	}
	if d.MaxOutputChannels < 1 {
		return DeviceInfo{}, fmt.Errorf("%w: %q has no output channels", ErrDeviceUnavailable, d.Name)
	}
	r.output = &d
	return d, nil
}

func (r *Recorder) resolve(name string, input bool) (DeviceInfo, error) {
	devices, err := r.backend.Devices()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	want := strings.ToLower(strings.TrimSpace(name))

	var matches []DeviceInfo
	for _, d := range devices {
		n := strings.ToLower(d.Name)
		if n == want {
			matches = []DeviceInfo{d}
			break
		}
		if strings.Contains(n, want) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return DeviceInfo{}, fmt.Errorf("%w: no device named %q", ErrDeviceUnavailable, name)
	case 1:
	default:
		return DeviceInfo{}, fmt.Errorf("%w: %q matches %d devices", ErrDeviceUnavailable, name, len(matches))
	}
	return usable(matches[0], input)
}

func (r *Recorder) byIndex(i int, input bool) (DeviceInfo, error) {
	devices, err := r.backend.Devices()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	for _, d := range devices {
		if d.Index == i {
			return usable(d, input)
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no device with index %d", ErrDeviceUnavailable, i)
}

func usable(d DeviceInfo, input bool) (DeviceInfo, error) {
	if input && d.MaxInputChannels < 1 {
		return DeviceInfo{}, fmt.Errorf("%w: %q has no input channels", ErrDeviceUnavailable, d.Name)
	}
	if !input && d.MaxOutputChannels < 1 {
		return DeviceInfo{}, fmt.Errorf("%w: %q has no output channels", ErrDeviceUnavailable, d.Name)
	}
	return d, nil
}

// Start begins an open-ended recording that runs until Stop is called or
// ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) error {
	return r.startCapture(ctx, 0)
}

// Record captures for d and returns the clip. A non-positive d returns an
// empty clip without touching the device. Stop or cancelling ctx ends the
// recording early and returns what was captured so far.
func (r *Recorder) Record(ctx context.Context, d time.Duration) (*clip.Clip, error) {
	if d <= 0 {
		return clip.Empty(r.sampleRate), nil
	}
	limit := int(d.Seconds()*float64(r.sampleRate) + 0.5)
	if limit == 0 {
		return clip.Empty(r.sampleRate), nil
	}
	if err := r.startCapture(ctx, limit); err != nil {
		return nil, err
	}
	return r.wait()
}

func (r *Recorder) startCapture(ctx context.Context, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return ErrBusy
	}
	dev, err := r.inputLocked()
	if err != nil {
		return err
	}

	buf := make([]float32, r.chunk)
	stream, err := r.backend.OpenInput(dev, r.sampleRate, buf)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDeviceUnavailable, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start %q: %w", ErrDeviceUnavailable, dev.Name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.state = Recording
	r.cancel = cancel
	r.done = done
	r.last = nil
	r.err = nil
	progress := r.progress

	r.logger.Info("recording started",
		slog.String("device", dev.Name),
		slog.Int("sample_rate", r.sampleRate),
		slog.Int("limit", limit),
	)
	go r.capture(ctx, stream, buf, limit, progress, done)
	return nil
}

func (r *Recorder) capture(ctx context.Context, stream Stream, buf []float32, limit int, progress ProgressFunc, done chan struct{}) {
	defer close(done)

	capacity := limit
	if capacity <= 0 {
		capacity = r.sampleRate * 10
	}
	samples := make([]float64, 0, capacity)

	var readErr error
	for limit <= 0 || len(samples) < limit {
		if ctx.Err() != nil {
			break
		}
		if err := stream.Read(); err != nil {
			if ctx.Err() == nil {
				readErr = fmt.Errorf("read input: %w", err)
			}
			break
		}
		n := len(buf)
		if limit > 0 && len(samples)+n > limit {
			n = limit - len(samples)
		}
		for _, v := range buf[:n] {
			samples = append(samples, float64(v))
		}
		if progress != nil {
			progress(len(samples), limit)
		}
	}
	closeStream(stream)

	c := &clip.Clip{Samples: samples, SampleRate: r.sampleRate}
	r.logger.Info("recording stopped",
		slog.Int("samples", c.Len()),
		slog.Duration("duration", c.Duration()),
	)
	if peak := c.Peak(); c.Len() > 0 && peak < LowLevelThreshold {
		r.logger.Warn("recording level is very low, check the microphone", slog.Float64("peak", peak))
	}
	r.finish(c, readErr)
}

// Play plays c through the output device and blocks until it finishes,
// Stop is called or ctx is cancelled. An empty clip returns ErrEmptyClip
// without opening the device.
func (r *Recorder) Play(ctx context.Context, c *clip.Clip) error {
	if err := r.PlayAsync(ctx, c); err != nil {
		return err
	}
	_, err := r.wait()
	return err
}

// PlayAsync starts playback and returns immediately. Use Wait to block
// until it ends.
func (r *Recorder) PlayAsync(ctx context.Context, c *clip.Clip) error {
	if c.IsEmpty() {
		return ErrEmptyClip
	}
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return ErrBusy
	}
	dev, err := r.outputLocked()
	if err != nil {
		return err
	}

	buf := make([]float32, r.chunk)
	stream, err := r.backend.OpenOutput(dev, c.SampleRate, buf)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDeviceUnavailable, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start %q: %w", ErrDeviceUnavailable, dev.Name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.state = Playing
	r.cancel = cancel
	r.done = done
	r.err = nil

	r.logger.Info("playback started",
		slog.String("device", dev.Name),
		slog.Duration("duration", c.Duration()),
	)
	go r.playback(ctx, stream, buf, c.Samples, done)
	return nil
}

func (r *Recorder) playback(ctx context.Context, stream Stream, buf []float32, x []float64, done chan struct{}) {
	defer close(done)

	var writeErr error
	for off := 0; off < len(x); off += len(buf) {
		if ctx.Err() != nil {
			break
		}
		n := 0
		for ; n < len(buf) && off+n < len(x); n++ {
			buf[n] = float32(x[off+n])
		}
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			if ctx.Err() == nil {
				writeErr = fmt.Errorf("write output: %w", err)
			}
			break
		}
	}
	closeStream(stream)
	r.logger.Info("playback stopped")

	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	r.finish(last, writeErr)
}

func (r *Recorder) finish(c *clip.Clip, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.state = Idle
	r.cancel = nil
	r.last = c
	r.err = err
	if err != nil {
		r.logger.Error("audio stream failed", slog.Any("error", err))
	}
}

func closeStream(s Stream) {
	s.Stop()
	s.Close()
}

// Stop ends the active operation and waits for it to wind down. For a
// recording it returns the samples captured so far. Stop on an idle
// recorder returns nil, nil.
func (r *Recorder) Stop() (*clip.Clip, error) {
	r.mu.Lock()
	state, cancel, done := r.state, r.cancel, r.done
	r.mu.Unlock()
	if state == Idle {
		return nil, nil
	}
	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	if state == Recording {
		return r.last, r.err
	}
	return nil, r.err
}

// Wait blocks until the current operation ends and returns its error.
func (r *Recorder) Wait() error {
	_, err := r.wait()
	return err
}

// Last returns the most recent recording, or nil.
func (r *Recorder) Last() *clip.Clip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Recorder) wait() (*clip.Clip, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.err
}

// Close stops any active operation and releases the backend.
func (r *Recorder) Close() error {
	r.Stop()
	return r.backend.Close()
}
