package recognition

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leonardotrapani/livecaption/internal/observe"
	"github.com/leonardotrapani/livecaption/internal/relay"
	"github.com/leonardotrapani/livecaption/internal/shutdown"
)

// State is a position in the session's reconnect state machine.
type State int32

const (
	Connecting State = iota
	Streaming
	Errored
	Reconnecting
	Stopped
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Errored:
		return "error"
	case Reconnecting:
		return "reconnecting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// defaultRetryDelays is the backoff between reconnects; the last entry
// repeats for as long as the process lives.
var defaultRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// DefaultAttemptTimeout bounds one streaming call. Google closes streams at
// about 305 seconds, so reconnecting a little earlier keeps captions flowing.
const DefaultAttemptTimeout = 290 * time.Second

// SessionConfig tunes the reconnect loop.
type SessionConfig struct {
	// AttemptTimeout bounds each streaming call. Zero means no bound.
	AttemptTimeout time.Duration

	// RetryDelays is the backoff schedule. Empty uses 1s, 2s, 4s.
	RetryDelays []time.Duration

	// OnStateChange is called on every transition. May be nil.
	OnStateChange func(State)

	// Stop tells user shutdown apart from other cancellation. When nil the
	// controller is looked up on the context passed to Run.
	Stop *shutdown.Controller

	// Metrics may be nil.
	Metrics *observe.Metrics
}

// Session keeps one recognition stream alive for the life of a run and puts
// every fragment into out without ever blocking on the consumer.
type Session struct {
	id      string
	backend Backend
	audio   Audio
	out     *relay.Queue[Fragment]
	cfg     SessionConfig

	state atomic.Int32

	mu       sync.Mutex
	attempts int
}

// NewSession wires backend, audio input and fragment output together.
func NewSession(backend Backend, audio Audio, out *relay.Queue[Fragment], cfg SessionConfig) *Session {
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = defaultRetryDelays
	}
	s := &Session{
		id:      uuid.NewString(),
		backend: backend,
		audio:   audio,
		out:     out,
		cfg:     cfg,
	}
	s.state.Store(int32(Connecting))
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Attempts returns how many streaming calls have been opened.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(st)
	}
}

func (s *Session) userRequested(ctx context.Context) bool {
	if s.cfg.Stop != nil {
		return s.cfg.Stop.Requested()
	}
	return shutdown.RequestedFromContext(ctx)
}

// Run streams until audio ends (nil), the service rejects the request (nil,
// logged) or the user stops the run (shutdown.ErrRequested). Transient
// failures reconnect without limit.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(Stopped)

	log.Printf("Session %s: starting with %s backend", s.short(), s.backend.Name())
	failures := 0
	for {
		s.setState(Connecting)
		delivered, err := s.streamOnce(ctx)
		if err == nil {
			log.Printf("Session %s: stream finished after audio ended", s.short())
			return nil
		}

		s.setState(Errored)
		class := Classify(err, s.userRequested(ctx))
		switch class {
		case ClassShutdown:
			log.Printf("Session %s: stopping on user request", s.short())
			return shutdown.ErrRequested
		case ClassClient:
			log.Printf("Session %s: request rejected, ending session: %v", s.short(), err)
			return nil
		}

		if ctx.Err() != nil {
			// the run context is gone for a reason other than the user
			return fmt.Errorf("session %s: %w", s.short(), ctx.Err())
		}

		if delivered {
			failures = 0
		}
		delay := s.delay(failures)
		failures++

		s.setState(Reconnecting)
		s.cfg.Metrics.RecordReconnect(ctx, s.backend.Name(), class.String())
		log.Printf("Session %s: stream error: %v, reconnecting in %v", s.short(), err, delay)

		if err := sleep(ctx, delay); err != nil {
			if s.userRequested(ctx) {
				log.Printf("Session %s: stopping on user request while reconnecting", s.short())
				return shutdown.ErrRequested
			}
			return fmt.Errorf("session %s: %w", s.short(), err)
		}
	}
}

// streamOnce runs one bounded streaming call and reports whether it delivered
// at least one fragment.
func (s *Session) streamOnce(ctx context.Context) (bool, error) {
	attemptCtx := ctx
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}

	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	stream, err := s.backend.Open(attemptCtx)
	if err != nil {
		return false, fmt.Errorf("open %s stream: %w", s.backend.Name(), err)
	}
	defer stream.Close()

	s.setState(Streaming)

	var delivered atomic.Bool
	err = stream.Run(attemptCtx, s.audio, func(f Fragment) {
		if f.Text == "" {
			return
		}
		delivered.Store(true)
		s.cfg.Metrics.RecordFragment(ctx, s.backend.Name(), f.IsFinal)
		s.out.Put(f)
	})
	return delivered.Load(), err
}

func (s *Session) delay(failures int) time.Duration {
	if failures >= len(s.cfg.RetryDelays) {
		return s.cfg.RetryDelays[len(s.cfg.RetryDelays)-1]
	}
	return s.cfg.RetryDelays[failures]
}

func (s *Session) short() string {
	if len(s.id) > 8 {
		return s.id[:8]
	}
	return s.id
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
