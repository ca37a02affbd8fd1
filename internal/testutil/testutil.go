package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/livecaption/internal/caption"
	"github.com/leonardotrapani/livecaption/internal/config"
	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

// TestConfig returns a valid configuration for testing
func TestConfig() *config.Config {
	c := config.DefaultConfig()
	c.General.Source = "ru-RU"
	c.General.Target = "en-US"
	c.Providers = map[string]config.ProviderConfig{
		"deepgram": {APIKey: "test-deepgram-key"},
		"deepl":    {APIKey: "test-deepl-key"},
	}
	return c
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// MockDevice implements audio.Device. Push delivers a chunk as the driver
// would.
type MockDevice struct {
	StartError error

	mu      sync.Mutex
	deliver func([]byte)
	started bool
	stops   int
}

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (m *MockDevice) Start(deliver func([]byte)) error {
	if m.StartError != nil {
		return m.StartError
	}
	m.mu.Lock()
	m.deliver = deliver
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *MockDevice) Stop() error {
	m.mu.Lock()
	m.started = false
	m.stops++
	m.mu.Unlock()
	return nil
}

// Push hands chunk to the source. It is a no-op while stopped.
func (m *MockDevice) Push(chunk []byte) {
	m.mu.Lock()
	deliver, started := m.deliver, m.started
	m.mu.Unlock()
	if started && deliver != nil {
		deliver(chunk)
	}
}

func (m *MockDevice) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *MockDevice) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// StreamFunc is one streaming attempt of a MockBackend.
type StreamFunc func(ctx context.Context, audio recognition.Audio, emit func(recognition.Fragment)) error

// MockBackend implements recognition.Backend, playing one StreamFunc per
// Open call. The last one repeats.
type MockBackend struct {
	Streams []StreamFunc

	mu     sync.Mutex
	opened int
	closed int
}

func NewMockBackend(streams ...StreamFunc) *MockBackend {
	return &MockBackend{Streams: streams}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Open(ctx context.Context) (recognition.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := min(m.opened, len(m.Streams)-1)
	m.opened++
	return &mockStream{backend: m, run: m.Streams[i]}, nil
}

func (m *MockBackend) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func (m *MockBackend) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockStream struct {
	backend *MockBackend
	run     StreamFunc
}

func (s *mockStream) Run(ctx context.Context, audio recognition.Audio, emit func(recognition.Fragment)) error {
	return s.run(ctx, audio, emit)
}

func (s *mockStream) Close() error {
	s.backend.mu.Lock()
	s.backend.closed++
	s.backend.mu.Unlock()
	return nil
}

// Emit returns a StreamFunc that emits fragments, then fails with err. A nil
// err blocks until ctx ends instead.
func Emit(err error, fragments ...recognition.Fragment) StreamFunc {
	return func(ctx context.Context, _ recognition.Audio, emit func(recognition.Fragment)) error {
		for _, f := range fragments {
			emit(f)
		}
		if err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

// Interim and Final build fragments without a speaker.
func Interim(text string) recognition.Fragment {
	return recognition.Fragment{Text: text, Speaker: recognition.NoSpeaker}
}

func Final(text string) recognition.Fragment {
	return recognition.Fragment{Text: text, IsFinal: true, Speaker: recognition.NoSpeaker}
}

// MockTranslator implements translate.Translator. Without TranslateFunc it
// upper-cases the text.
type MockTranslator struct {
	TranslateFunc func(ctx context.Context, req translate.Request) (string, error)

	mu       sync.Mutex
	requests []translate.Request
}

func NewMockTranslator() *MockTranslator {
	return &MockTranslator{}
}

func (m *MockTranslator) Name() string { return "mock" }

func (m *MockTranslator) Translate(ctx context.Context, req translate.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, req)
	}
	return strings.ToUpper(req.Text), nil
}

func (m *MockTranslator) Requests() []translate.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]translate.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// MockSink implements caption.Sink and keeps every caption it was shown.
type MockSink struct {
	ShowError error

	mu       sync.Mutex
	captions []caption.Caption
}

func NewMockSink() *MockSink {
	return &MockSink{}
}

func (m *MockSink) Show(c caption.Caption) error {
	m.mu.Lock()
	m.captions = append(m.captions, c)
	m.mu.Unlock()
	return m.ShowError
}

func (m *MockSink) Captions() []caption.Caption {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]caption.Caption, len(m.captions))
	copy(out, m.captions)
	return out
}

// Texts returns the text of every caption shown.
func (m *MockSink) Texts() []string {
	caps := m.Captions()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.Text
	}
	return out
}
