// Package audio captures microphone PCM and exposes it as a pull sequence of
// chunks for the recognizer.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leonardotrapani/livecaption/internal/relay"
)

// Config describes the capture format. Every device delivers mono s16le.
type Config struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int    // samples per delivered chunk
	QueueSize       int    // chunks buffered between device and recognizer
	Device          string // device name, empty for the system default
	Backend         string // "portaudio" or "pipewire"
}

// DefaultConfig returns 16 kHz mono with 100 ms chunks.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 1600,
		QueueSize:       50,
		Backend:         "portaudio",
	}
}

// ChunkBytes is the size of one full chunk in bytes.
func (c Config) ChunkBytes() int {
	return c.FramesPerBuffer * c.Channels * 2
}

// Validate checks the capture parameters.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("invalid Channels: %d (only mono is supported)", c.Channels)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid FramesPerBuffer: %d", c.FramesPerBuffer)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid QueueSize: %d", c.QueueSize)
	}
	switch c.Backend {
	case "portaudio", "pipewire":
	default:
		return fmt.Errorf("invalid Backend: %q", c.Backend)
	}
	return nil
}

// Device is a callback-driven capture device. deliver may be called from a
// thread the Go runtime does not own; it never blocks. The device must not
// retain a chunk after passing it to deliver.
type Device interface {
	Start(deliver func(chunk []byte)) error
	Stop() error
}

// NewDevice returns the capture device selected by cfg.Backend.
func NewDevice(cfg Config) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "pipewire":
		return NewPipeWireDevice(cfg), nil
	default:
		return NewPortAudioDevice(cfg), nil
	}
}

// dropLogInterval rate-limits the backpressure summary.
const dropLogInterval = time.Second

// Source owns a capture device and the audio hop of the pipeline.
type Source struct {
	dev Device
	q   *relay.Queue[[]byte]

	mu     sync.Mutex
	opened bool
	closed bool

	lastDropLog  atomic.Int64
	loggedDrops  atomic.Int64
	deliveredCnt atomic.Int64
}

// NewSource wraps dev with a drop-oldest queue of queueSize chunks. opts are
// passed to the queue, e.g. a drop hook for metrics.
func NewSource(dev Device, queueSize int, opts ...relay.Option) *Source {
	return &Source{
		dev: dev,
		q:   relay.New[[]byte](queueSize, opts...),
	}
}

// Open starts the device.
func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("audio source closed")
	}
	if s.opened {
		return errors.New("audio source already open")
	}
	if err := s.dev.Start(s.deliver); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	s.opened = true
	s.lastDropLog.Store(time.Now().UnixNano())
	log.Printf("Audio: capture started")
	return nil
}

func (s *Source) deliver(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.q.Put(chunk)
	s.deliveredCnt.Add(1)

	now := time.Now().UnixNano()
	last := s.lastDropLog.Load()
	if time.Duration(now-last) < dropLogInterval || !s.lastDropLog.CompareAndSwap(last, now) {
		return
	}
	dropped := s.q.Dropped()
	if prev := s.loggedDrops.Swap(dropped); dropped > prev {
		log.Printf("Audio: dropped %d chunks due to backpressure", dropped-prev)
	}
}

// Next blocks for one chunk, then appends every chunk already queued so a
// slow reader catches up in one call. It returns io.EOF once the source is
// closed and drained.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	first, err := s.q.Take(ctx)
	if errors.Is(err, relay.ErrClosed) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	for {
		more, ok := s.q.TryTake()
		if !ok {
			return first, nil
		}
		first = append(first, more...)
	}
}

// Close stops the device and ends the chunk sequence. Safe to call more
// than once and before Open.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.opened {
		err = s.dev.Stop()
		log.Printf("Audio: capture stopped, %d chunks delivered, %d dropped", s.deliveredCnt.Load(), s.q.Dropped())
	}
	s.q.Close()
	return err
}

// Dropped returns how many chunks were evicted by backpressure.
func (s *Source) Dropped() int64 { return s.q.Dropped() }
