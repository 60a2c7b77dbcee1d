package recorder

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is the Backend used outside of tests.
type PortAudio struct{}

// NewPortAudio initializes the PortAudio library. Close must be called to
// release it.
func NewPortAudio() (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudio{}, nil
}

func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

func (p *PortAudio) Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = toDeviceInfo(i, d)
	}
	return out, nil
}

func (p *PortAudio) DefaultInput() (DeviceInfo, error) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil {
		return DeviceInfo{}, err
	}
	return p.indexed(d)
}

func (p *PortAudio) DefaultOutput() (DeviceInfo, error) {
	d, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return DeviceInfo{}, err
	}
	return p.indexed(d)
}

// indexed locates d in the device list so its Index matches Devices.
func (p *PortAudio) indexed(d *portaudio.DeviceInfo) (DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return DeviceInfo{}, err
	}
	for i, cand := range devices {
		if cand == d || (cand.Name == d.Name && cand.HostApi == d.HostApi) {
			return toDeviceInfo(i, cand), nil
		}
	}
	return toDeviceInfo(-1, d), nil
}

func (p *PortAudio) OpenInput(dev DeviceInfo, sampleRate int, buf []float32) (Stream, error) {
	info, err := lookup(dev)
	if err != nil {
		return nil, err
	}
	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = len(buf)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return paStream{stream}, nil
}

func (p *PortAudio) OpenOutput(dev DeviceInfo, sampleRate int, buf []float32) (Stream, error) {
	info, err := lookup(dev)
	if err != nil {
		return nil, err
	}
	params := portaudio.LowLatencyParameters(nil, info)
	params.Input.Channels = 0
	params.Output.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = len(buf)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return paStream{stream}, nil
}

func lookup(dev DeviceInfo) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if dev.Index < 0 || dev.Index >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range", dev.Index)
	}
	return devices[dev.Index], nil
}

func toDeviceInfo(i int, d *portaudio.DeviceInfo) DeviceInfo {
	return DeviceInfo{
		Index:             i,
		Name:              d.Name,
		MaxInputChannels:  d.MaxInputChannels,
		MaxOutputChannels: d.MaxOutputChannels,
		DefaultSampleRate: d.DefaultSampleRate,
	}
}

// paStream reports input overflow and output underflow as success.
type paStream struct {
	*portaudio.Stream
}

func (s paStream) Read() error {
	if err := s.Stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return err
	}
	return nil
}

func (s paStream) Write() error {
	if err := s.Stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		return err
	}
	return nil
}
