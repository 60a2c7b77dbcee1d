// Package recordertest provides an in-memory recorder.Backend.
package recordertest

import (
	"errors"
	"sync"
	"time"

	"github.com/cwbudde/algo-mimic/recorder"
)

// Backend is a fake audio host. Input streams fill their buffer with Signal
// on every Read; output streams append their buffer to Played on every
// Write.
type Backend struct {
	mu sync.Mutex

	Devs       []recorder.DeviceInfo
	DefaultIn  int
	DefaultOut int

	Signal    float32
	ReadDelay time.Duration
	// WriteDelay slows playback so tests can interrupt it.
	WriteDelay time.Duration
	OpenErr    error

	chunksRead int
	played     []float32
	opened     int
	closed     bool
}

// New returns a backend with a speaker, a microphone and a line input.
// The line input is the default input.
func New() *Backend {
	return &Backend{
		Devs: []recorder.DeviceInfo{
			{Index: 0, Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
			{Index: 1, Name: "USB Microphone", MaxInputChannels: 1, DefaultSampleRate: 44100},
			{Index: 2, Name: "Line In", MaxInputChannels: 2, DefaultSampleRate: 44100},
		},
		DefaultIn:  2,
		DefaultOut: 0,
		Signal:     0.5,
	}
}

func (b *Backend) Devices() ([]recorder.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recorder.DeviceInfo(nil), b.Devs...), nil
}

func (b *Backend) DefaultInput() (recorder.DeviceInfo, error) {
	return b.device(b.DefaultIn)
}

func (b *Backend) DefaultOutput() (recorder.DeviceInfo, error) {
	return b.device(b.DefaultOut)
}

func (b *Backend) device(i int) (recorder.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.Devs {
		if d.Index == i {
			return d, nil
		}
	}
	return recorder.DeviceInfo{}, errors.New("no such device")
}

func (b *Backend) OpenInput(dev recorder.DeviceInfo, sampleRate int, buf []float32) (recorder.Stream, error) {
	return b.open(buf, true)
}

func (b *Backend) OpenOutput(dev recorder.DeviceInfo, sampleRate int, buf []float32) (recorder.Stream, error) {
	return b.open(buf, false)
}

func (b *Backend) open(buf []float32, input bool) (recorder.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.opened++
	return &stream{b: b, buf: buf, input: input}, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// ChunksRead is the number of completed input reads.
func (b *Backend) ChunksRead() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunksRead
}

// Played returns a copy of everything written to output streams.
func (b *Backend) Played() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float32(nil), b.played...)
}

// Opened is the number of streams opened so far.
func (b *Backend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type stream struct {
	b     *Backend
	buf   []float32
	input bool
}

func (s *stream) Start() error { return nil }
func (s *stream) Stop() error  { return nil }
func (s *stream) Close() error { return nil }

func (s *stream) Read() error {
	if !s.input {
		return errors.New("read on output stream")
	}
	s.b.mu.Lock()
	delay, sig := s.b.ReadDelay, s.b.Signal
	s.b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	for i := range s.buf {
		s.buf[i] = sig
	}
	s.b.mu.Lock()
	s.b.chunksRead++
	s.b.mu.Unlock()
	return nil
}

func (s *stream) Write() error {
	if s.input {
		return errors.New("write on input stream")
	}
	s.b.mu.Lock()
	delay := s.b.WriteDelay
	s.b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	s.b.mu.Lock()
	s.b.played = append(s.b.played, s.buf...)
	s.b.mu.Unlock()
	return nil
}
