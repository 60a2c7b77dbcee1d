package recorder

// DeviceInfo describes an audio device as reported by a Backend.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// Stream is an open mono device stream bound to a caller-owned buffer.
// Read blocks until the buffer has been filled from the device; Write
// blocks until the buffer has been handed to the device.
type Stream interface {
	Start() error
	Read() error
	Write() error
	Stop() error
	Close() error
}

// Backend abstracts the audio host API.
type Backend interface {
	Devices() ([]DeviceInfo, error)
	DefaultInput() (DeviceInfo, error)
	DefaultOutput() (DeviceInfo, error)
	// OpenInput opens a one-channel capture stream that fills buf.
	OpenInput(dev DeviceInfo, sampleRate int, buf []float32) (Stream, error)
	// OpenOutput opens a one-channel playback stream that drains buf.
	OpenOutput(dev DeviceInfo, sampleRate int, buf []float32) (Stream, error)
	Close() error
}
