package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leonardotrapani/livecaption/internal/audio"
	"github.com/leonardotrapani/livecaption/internal/caption"
	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/shutdown"
	"github.com/leonardotrapani/livecaption/internal/testutil"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

var errRejected = recognition.NewClientError(errors.New("bad request"))

func testConfig() Config {
	return Config{
		Caption: caption.Config{Source: "en", Target: "en"},
		Session: recognition.SessionConfig{RetryDelays: []time.Duration{10 * time.Millisecond}},
	}
}

func TestNew(t *testing.T) {
	src := audio.NewSource(testutil.NewMockDevice(), 4)
	p := New(src, testutil.NewMockBackend(testutil.Emit(errRejected)), nil, testutil.NewMockSink(), Config{})

	if p.Status() != Idle {
		t.Errorf("Status() = %v, want %v", p.Status(), Idle)
	}
	if p.cfg.FragmentQueueSize != DefaultFragmentQueueSize {
		t.Errorf("FragmentQueueSize = %d", p.cfg.FragmentQueueSize)
	}
	if p.Prev() != "" {
		t.Errorf("Prev() = %q before Run", p.Prev())
	}
}

func TestPipeline_TranslatesUntilClientError(t *testing.T) {
	dev := testutil.NewMockDevice()
	backend := testutil.NewMockBackend(testutil.Emit(errRejected, testutil.Final("privet mir")))
	tr := testutil.NewMockTranslator()
	sink := testutil.NewMockSink()

	cfg := testConfig()
	cfg.Caption.Source, cfg.Caption.Target = "ru", "en"
	p := New(audio.NewSource(dev, 4), backend, tr, sink, cfg)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := sink.Texts(); len(got) != 1 || got[0] != "PRIVET MIR" {
		t.Errorf("captions = %q, want [PRIVET MIR]", got)
	}
	if reqs := tr.Requests(); len(reqs) != 1 || reqs[0].Source != "ru" || reqs[0].Target != "en" {
		t.Errorf("requests = %+v", reqs)
	}
	if p.Status() != Stopped {
		t.Errorf("Status() = %v, want %v", p.Status(), Stopped)
	}
	if dev.IsStarted() || dev.Stops() == 0 {
		t.Error("audio device was not released")
	}
}

func TestPipeline_ReconnectKeepsCaption(t *testing.T) {
	sink := testutil.NewMockSink()
	shown := func(ctx context.Context, n int) error {
		for len(sink.Captions()) < n {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
		}
		return nil
	}

	backend := testutil.NewMockBackend(
		func(ctx context.Context, _ recognition.Audio, emit func(recognition.Fragment)) error {
			emit(testutil.Final("hello world"))
			if err := shown(ctx, 1); err != nil {
				return err
			}
			return recognition.NewTransientError(errors.New("connection reset"))
		},
		func(ctx context.Context, _ recognition.Audio, emit func(recognition.Fragment)) error {
			emit(testutil.Interim("world again"))
			if err := shown(ctx, 2); err != nil {
				return err
			}
			return errRejected
		},
	)

	p := New(audio.NewSource(testutil.NewMockDevice(), 4), backend, translate.Passthrough{}, sink, testConfig())

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if backend.Opened() != 2 {
		t.Errorf("Opened() = %d, want 2", backend.Opened())
	}
	caps := sink.Captions()
	if len(caps) != 2 {
		t.Fatalf("captions = %+v", caps)
	}
	if caps[1].Text != "hello world again" || !caps[1].Overlap {
		t.Errorf("caption after reconnect = %+v, want merged onto the previous one", caps[1])
	}
	if p.Prev() != "hello world again" {
		t.Errorf("Prev() = %q", p.Prev())
	}
}

func TestPipeline_UserShutdown(t *testing.T) {
	dev := testutil.NewMockDevice()
	backend := testutil.NewMockBackend(testutil.Emit(nil))

	stop := shutdown.New(context.Background())
	defer stop.Close()

	cfg := testConfig()
	cfg.Session.Stop = stop
	p := New(audio.NewSource(dev, 4), backend, nil, testutil.NewMockSink(), cfg)

	done := make(chan error, 1)
	go func() { done <- p.Run(stop.Context()) }()

	testutil.WaitForCondition(t, func() bool { return backend.Opened() > 0 }, 2*time.Second)
	stop.Request()

	select {
	case err := <-done:
		if !errors.Is(err, shutdown.ErrRequested) {
			t.Fatalf("Run() error = %v, want ErrRequested", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after shutdown")
	}
	if dev.IsStarted() {
		t.Error("audio device still running")
	}
	if backend.Closed() == 0 {
		t.Error("stream was not closed")
	}
}

func TestPipeline_ControllerFromContext(t *testing.T) {
	backend := testutil.NewMockBackend(testutil.Emit(nil))
	stop := shutdown.New(context.Background())
	defer stop.Close()

	p := New(audio.NewSource(testutil.NewMockDevice(), 4), backend, nil, testutil.NewMockSink(), testConfig())

	done := make(chan error, 1)
	go func() { done <- p.Run(shutdown.WithController(stop.Context(), stop)) }()

	testutil.WaitForCondition(t, func() bool { return backend.Opened() > 0 }, 2*time.Second)
	stop.Request()

	select {
	case err := <-done:
		if !errors.Is(err, shutdown.ErrRequested) {
			t.Fatalf("Run() error = %v, want ErrRequested", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after shutdown")
	}
}

func TestPipeline_AudioOpenFailure(t *testing.T) {
	dev := testutil.NewMockDevice()
	dev.StartError = errors.New("no such device")
	backend := testutil.NewMockBackend(testutil.Emit(nil))

	p := New(audio.NewSource(dev, 4), backend, nil, testutil.NewMockSink(), testConfig())
	err := p.Run(context.Background())
	if err == nil || !errors.Is(err, dev.StartError) {
		t.Fatalf("Run() error = %v, want wrapped device error", err)
	}
	if backend.Opened() != 0 {
		t.Error("backend opened without audio")
	}
	if p.Status() != Idle {
		t.Errorf("Status() = %v, want %v", p.Status(), Idle)
	}
}
