// Package shutdown tells a deliberate user stop apart from any other kind of
// cancellation.
package shutdown

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// ErrRequested is returned by loops that stop because the user asked them to.
var ErrRequested = errors.New("shutdown requested")

// Controller owns the root context of a run. Request records the stop as
// user-initiated before cancelling, so anything that observes the
// cancellation can ask Requested and get a truthful answer.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	requested atomic.Bool
	once      sync.Once

	sigMu  sync.Mutex
	sigCh  chan os.Signal
	stopWg sync.WaitGroup
}

// New derives a controller from parent.
func New(parent context.Context) *Controller {
	ctx, cancel := context.WithCancel(parent)
	return &Controller{ctx: ctx, cancel: cancel}
}

// Context returns the context cancelled by Request.
func (c *Controller) Context() context.Context { return c.ctx }

// Request marks the stop as user-initiated and cancels the context.
func (c *Controller) Request() {
	c.once.Do(func() {
		c.requested.Store(true)
		c.cancel()
	})
}

// Requested reports whether Request has been called.
func (c *Controller) Requested() bool { return c.requested.Load() }

// Err returns ErrRequested after a user stop, the context error after any
// other cancellation, and nil while running.
func (c *Controller) Err() error {
	if c.Requested() {
		return ErrRequested
	}
	return c.ctx.Err()
}

// Done mirrors Context().Done().
func (c *Controller) Done() <-chan struct{} { return c.ctx.Done() }

// NotifySignals turns SIGINT and SIGTERM into Request. A second signal after
// the first restores the default handler so the process can be killed.
func (c *Controller) NotifySignals() {
	c.sigMu.Lock()
	defer c.sigMu.Unlock()
	if c.sigCh != nil {
		return
	}

	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)

	c.stopWg.Add(1)
	go func(ch chan os.Signal) {
		defer c.stopWg.Done()
		select {
		case sig, ok := <-ch:
			if !ok {
				return
			}
			log.Printf("Received signal %v, shutting down gracefully", sig)
			c.Request()
			signal.Reset(syscall.SIGINT, syscall.SIGTERM)
		case <-c.ctx.Done():
		}
	}(c.sigCh)
}

// Close releases signal handlers and the context. It does not mark the stop
// as user-requested.
func (c *Controller) Close() {
	c.sigMu.Lock()
	if c.sigCh != nil {
		signal.Stop(c.sigCh)
	}
	c.sigMu.Unlock()
	c.cancel()
	c.stopWg.Wait()
}

type ctxKey struct{}

// WithController attaches c to ctx so code that only receives a context can
// still tell a user stop from a transient cancellation.
func WithController(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the controller attached by WithController.
func FromContext(ctx context.Context) (*Controller, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Controller)
	return c, ok && c != nil
}

// RequestedFromContext reports whether the controller carried by ctx has seen
// a user stop. It is false when no controller is attached.
func RequestedFromContext(ctx context.Context) bool {
	c, ok := FromContext(ctx)
	return ok && c.Requested()
}
