package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice captures from a PortAudio input stream. Samples arrive on
// PortAudio's callback thread.
type PortAudioDevice struct {
	config Config

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudioDevice returns a PortAudio backed device.
func NewPortAudioDevice(config Config) *PortAudioDevice {
	return &PortAudioDevice{config: config}
}

func (d *PortAudioDevice) Start(deliver func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		return fmt.Errorf("already recording")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize PortAudio: %w", err)
	}

	info, err := findInputDevice(d.config.Device)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = d.config.Channels
	params.SampleRate = float64(d.config.SampleRate)
	params.FramesPerBuffer = d.config.FramesPerBuffer

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		deliver(encodeS16LE(in))
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open stream on %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start stream: %w", err)
	}

	d.stream = stream
	return nil
}

// Stop halts the stream and releases PortAudio.
func (d *PortAudioDevice) Stop() error {
	d.mu.Lock()
	stream := d.stream
	d.stream = nil
	d.mu.Unlock()

	if stream == nil {
		return nil
	}
	stopErr := stream.Stop()
	closeErr := stream.Close()
	termErr := portaudio.Terminate()
	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return fmt.Errorf("stop PortAudio: %w", err)
		}
	}
	return nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return info, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, info := range devices {
		if info.MaxInputChannels > 0 && strings.Contains(strings.ToLower(info.Name), strings.ToLower(name)) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", name)
}

// InputDevice is a capture device as listed by `livecaption devices`.
type InputDevice struct {
	Name       string
	Channels   int
	SampleRate float64
	Default    bool
}

// ListInputDevices enumerates PortAudio input devices.
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []InputDevice
	for _, info := range all {
		if info.MaxInputChannels == 0 {
			continue
		}
		out = append(out, InputDevice{
			Name:       info.Name,
			Channels:   info.MaxInputChannels,
			SampleRate: info.DefaultSampleRate,
			Default:    def != nil && def.Name == info.Name,
		})
	}
	return out, nil
}

// encodeS16LE converts samples to little-endian bytes in a fresh buffer.
func encodeS16LE(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
