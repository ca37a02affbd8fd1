package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/leonardotrapani/livecaption/internal/caption"
	"github.com/leonardotrapani/livecaption/internal/observe"
	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/relay"
	"github.com/leonardotrapani/livecaption/internal/shutdown"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

type Status string

const (
	Idle      Status = "idle"
	Listening Status = "listening"
	Stopped   Status = "stopped"
)

// DefaultFragmentQueueSize keeps only the newest fragment: the consumer
// always works on the freshest text.
const DefaultFragmentQueueSize = 1

// Capture is an opened-on-demand audio input, usually an *audio.Source.
type Capture interface {
	recognition.Audio
	Open() error
	Close() error
}

type Config struct {
	Caption caption.Config
	Session recognition.SessionConfig

	// FragmentQueueSize bounds fragments waiting for the consumer. Zero uses
	// DefaultFragmentQueueSize.
	FragmentQueueSize int

	// Metrics may be nil.
	Metrics *observe.Metrics
}

// Pipeline runs capture, recognition and captioning for one session.
type Pipeline struct {
	capture    Capture
	backend    recognition.Backend
	translator translate.Translator
	sink       caption.Sink
	cfg        Config

	status   atomic.Value
	consumer *caption.Consumer
	session  *recognition.Session
}

func New(capture Capture, backend recognition.Backend, translator translate.Translator, sink caption.Sink, cfg Config) *Pipeline {
	if cfg.FragmentQueueSize <= 0 {
		cfg.FragmentQueueSize = DefaultFragmentQueueSize
	}
	if cfg.Session.Metrics == nil {
		cfg.Session.Metrics = cfg.Metrics
	}
	p := &Pipeline{
		capture:    capture,
		backend:    backend,
		translator: translator,
		sink:       sink,
		cfg:        cfg,
	}
	p.status.Store(Idle)
	return p
}

func (p *Pipeline) Status() Status {
	return p.status.Load().(Status)
}

// Session returns the recognition session once Run has started.
func (p *Pipeline) Session() *recognition.Session { return p.session }

// Prev returns the last caption shown. Only meaningful after Run returned.
func (p *Pipeline) Prev() string {
	if p.consumer == nil {
		return ""
	}
	return p.consumer.Prev()
}

// Run blocks until the recognizer ends the session (nil), the user stops
// it (shutdown.ErrRequested) or setup fails. The audio device is released on
// every path.
func (p *Pipeline) Run(ctx context.Context) error {
	stop := p.cfg.Session.Stop
	if stop == nil {
		stop, _ = shutdown.FromContext(ctx)
	}
	p.cfg.Session.Stop = stop

	if err := p.capture.Open(); err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer p.capture.Close()

	fragments := relay.New[recognition.Fragment](p.cfg.FragmentQueueSize,
		relay.WithDropHook(p.cfg.Metrics.DropHook("fragments")))

	p.session = recognition.NewSession(p.backend, p.capture, fragments, p.cfg.Session)
	p.consumer = caption.NewConsumer(fragments, p.translator, p.sink, p.cfg.Caption, p.cfg.Metrics)

	p.status.Store(Listening)
	defer p.status.Store(Stopped)
	log.Printf("Pipeline: Starting session %s with %s", p.session.ID(), p.backend.Name())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Closing the queue lets the consumer finish what is buffered.
		defer fragments.Close()
		defer p.capture.Close()
		return p.session.Run(gctx)
	})
	g.Go(func() error {
		return p.consumer.Run(gctx)
	})
	err := g.Wait()

	switch {
	case stop != nil && stop.Requested():
		log.Printf("Pipeline: Stopped by user")
		return shutdown.ErrRequested
	case err == nil:
		log.Printf("Pipeline: Session ended")
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return ctx.Err()
	default:
		log.Printf("Pipeline: Session ended with error: %v", err)
		return err
	}
}
