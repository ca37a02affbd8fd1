package audio

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/livecaption/internal/relay"
)

type fakeDevice struct {
	mu       sync.Mutex
	deliver  func([]byte)
	startErr error
	starts   int
	stops    int
}

func (d *fakeDevice) Start(deliver func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	d.deliver = deliver
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDevice) push(chunks ...string) {
	for _, c := range chunks {
		d.deliver([]byte(c))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SampleRate != 16000 || cfg.Channels != 1 || cfg.FramesPerBuffer != 1600 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if cfg.ChunkBytes() != 3200 {
		t.Errorf("ChunkBytes() = %d, want 3200 (100 ms of s16 mono)", cfg.ChunkBytes())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"stereo", func(c *Config) { c.Channels = 2 }},
		{"zero frames", func(c *Config) { c.FramesPerBuffer = 0 }},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }},
		{"unknown backend", func(c *Config) { c.Backend = "alsa" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestSource_NextCoalescesInOrder(t *testing.T) {
	dev := &fakeDevice{}
	src := NewSource(dev, 10)
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	dev.push("ab", "cd", "ef")

	got, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(got) != "abcdef" {
		t.Errorf("Next() = %q, want %q", got, "abcdef")
	}
}

func TestSource_NextBlocksUntilChunk(t *testing.T) {
	dev := &fakeDevice{}
	src := NewSource(dev, 10)
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	done := make(chan []byte, 1)
	go func() {
		b, _ := src.Next(context.Background())
		done <- b
	}()

	select {
	case <-done:
		t.Fatal("Next returned before any audio")
	case <-time.After(20 * time.Millisecond):
	}

	dev.push("xy")
	select {
	case b := <-done:
		if string(b) != "xy" {
			t.Errorf("Next() = %q", b)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestSource_CloseDrainsThenEOF(t *testing.T) {
	dev := &fakeDevice{}
	src := NewSource(dev, 10)
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	dev.push("tail")

	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if dev.stops != 1 {
		t.Errorf("device stopped %d times, want 1", dev.stops)
	}

	got, err := src.Next(context.Background())
	if err != nil || string(got) != "tail" {
		t.Fatalf("Next() = (%q, %v), want buffered chunk", got, err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after drain error = %v, want io.EOF", err)
	}

	// late chunks from the driver are ignored
	dev.push("late")
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after late push error = %v, want io.EOF", err)
	}
}

func TestSource_CloseBeforeOpen(t *testing.T) {
	dev := &fakeDevice{}
	src := NewSource(dev, 1)
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if dev.stops != 0 {
		t.Error("Close before Open must not stop the device")
	}
	if err := src.Open(); err == nil {
		t.Error("Open after Close should fail")
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
}

func TestSource_OpenTwiceAndStartFailure(t *testing.T) {
	dev := &fakeDevice{}
	src := NewSource(dev, 1)
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	if err := src.Open(); err == nil {
		t.Error("second Open should fail")
	}
	_ = src.Close()

	broken := NewSource(&fakeDevice{startErr: errors.New("no mic")}, 1)
	if err := broken.Open(); err == nil || !strings.Contains(err.Error(), "no mic") {
		t.Errorf("Open() error = %v, want wrapped start error", err)
	}
}

func TestSource_DropsOldestUnderBackpressure(t *testing.T) {
	dev := &fakeDevice{}
	var hooked int
	src := NewSource(dev, 2, relay.WithDropHook(func() { hooked++ }))
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	dev.push("1", "2", "3", "4", "5")

	if src.Dropped() != 3 || hooked != 3 {
		t.Errorf("Dropped() = %d, hook = %d, want 3", src.Dropped(), hooked)
	}
	got, err := src.Next(context.Background())
	if err != nil || string(got) != "45" {
		t.Errorf("Next() = (%q, %v), want newest chunks", got, err)
	}
}

func TestSource_NextHonorsContext(t *testing.T) {
	src := NewSource(&fakeDevice{}, 1)
	if err := src.Open(); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want deadline", err)
	}
}

func TestEncodeS16LE(t *testing.T) {
	got := encodeS16LE([]int16{1, -2, 0x1234})
	want := []byte{0x01, 0x00, 0xfe, 0xff, 0x34, 0x12}
	if string(got) != string(want) {
		t.Errorf("encodeS16LE() = %v, want %v", got, want)
	}
}

func TestPipeWireBuildArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "alsa_input.usb"
	args := NewPipeWireDevice(cfg).buildArgs()

	joined := strings.Join(args, " ")
	for _, want := range []string{"--rate 16000", "--channels 1", "--target alsa_input.usb"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "-" {
		t.Errorf("last arg = %q, want stdout marker", args[len(args)-1])
	}
}

func TestPipeWireStopWithoutStart(t *testing.T) {
	if err := NewPipeWireDevice(DefaultConfig()).Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestNewDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "pipewire"
	dev, err := NewDevice(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dev.(*PipeWireDevice); !ok {
		t.Errorf("NewDevice(pipewire) = %T", dev)
	}

	cfg.Backend = "portaudio"
	dev, err = NewDevice(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dev.(*PortAudioDevice); !ok {
		t.Errorf("NewDevice(portaudio) = %T", dev)
	}

	cfg.QueueSize = 0
	if _, err := NewDevice(cfg); err == nil {
		t.Error("NewDevice with invalid config should fail")
	}
}
