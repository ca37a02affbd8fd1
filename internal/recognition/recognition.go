// Package recognition runs the long-lived speech-recognition stream and turns
// its responses into transcript fragments.
package recognition

import (
	"context"
	"errors"
)

// NoSpeaker marks a fragment without diarization data.
const NoSpeaker = -1

// Fragment is one incremental transcript update. Interim fragments of an
// utterance grow until a final one closes it.
type Fragment struct {
	Text    string
	IsFinal bool
	Speaker int
}

// Config holds what every backend needs to configure a stream.
type Config struct {
	Language       string // BCP-47 code, e.g. "ru-RU"
	SampleRate     int
	InterimResults bool
	Diarize        bool
}

// DefaultConfig returns 16 kHz mono settings with interim results on.
func DefaultConfig() Config {
	return Config{
		Language:       "en-US",
		SampleRate:     16000,
		InterimResults: true,
		Diarize:        true,
	}
}

// Audio is a pull sequence of PCM payloads. Next returns io.EOF once the
// source is closed and drained.
type Audio interface {
	Next(ctx context.Context) ([]byte, error)
}

// Backend opens recognition streams against one vendor.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Open connects and sends the stream configuration.
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open bidirectional recognition call.
type Stream interface {
	// Run forwards audio and calls emit for each non-empty top alternative.
	// It returns nil only after audio reached io.EOF and the server finished;
	// a server that ends the call while audio is still flowing yields
	// ErrStreamEnded. emit is never called after Run returns.
	Run(ctx context.Context, audio Audio, emit func(Fragment)) error

	// Close releases the connection. It is safe to call after Run.
	Close() error
}

// ErrStreamEnded reports a server-side end of stream while audio was still
// being captured.
var ErrStreamEnded = errors.New("recognition: stream ended by server")

// DominantSpeaker returns the most frequent tag, preferring the one seen
// first on ties, or NoSpeaker for an empty slice.
func DominantSpeaker(tags []int) int {
	if len(tags) == 0 {
		return NoSpeaker
	}
	counts := make(map[int]int, 4)
	best, bestCount := NoSpeaker, 0
	for _, tag := range tags {
		counts[tag]++
	}
	for _, tag := range tags {
		if c := counts[tag]; c > bestCount {
			best, bestCount = tag, c
		}
	}
	return best
}
