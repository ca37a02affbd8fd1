package caption

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/leonardotrapani/livecaption/internal/observe"
	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/relay"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

// DefaultContextSize is how many final transcripts serve as context.
const DefaultContextSize = 3

// Caption is what the sink displays after each fragment.
type Caption struct {
	Text    string
	Speaker int
	Final   bool
	Overlap bool // Text was stitched onto the previous caption
}

// Sink displays captions. Show is called from the consumer goroutine only.
type Sink interface {
	Show(c Caption) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Caption) error

func (f SinkFunc) Show(c Caption) error { return f(c) }

// Config tunes the consumer.
type Config struct {
	Source string
	Target string

	// ContextSize is the number of final transcripts kept as context.
	// Zero uses DefaultContextSize; negative disables context.
	ContextSize int

	// ContextWords caps the context in words. Zero means no cap.
	ContextWords int

	// LastSentenceOnly translates only the last sentence of interim
	// fragments.
	LastSentenceOnly bool
}

// Consumer drains fragments, translates them and feeds the sink. Translation,
// merge and display run sequentially, so display order is dequeue order.
type Consumer struct {
	in         *relay.Queue[recognition.Fragment]
	translator translate.Translator
	sink       Sink
	cfg        Config
	metrics    *observe.Metrics

	window *Window
	prev   string
	shown  int
}

// NewConsumer wires a consumer. A nil translator passes transcripts through.
// metrics may be nil.
func NewConsumer(in *relay.Queue[recognition.Fragment], tr translate.Translator, sink Sink, cfg Config, metrics *observe.Metrics) *Consumer {
	if tr == nil {
		tr = translate.Passthrough{}
	}
	switch {
	case cfg.ContextSize == 0:
		cfg.ContextSize = DefaultContextSize
	case cfg.ContextSize < 0:
		cfg.ContextSize = 0
	}
	if limiter, ok := tr.(translate.ContextLimiter); ok {
		if n := limiter.ContextWords(); cfg.ContextWords == 0 || n < cfg.ContextWords {
			cfg.ContextWords = n
		}
	}
	return &Consumer{
		in:         in,
		translator: tr,
		sink:       sink,
		cfg:        cfg,
		metrics:    metrics,
		window:     NewWindow(cfg.ContextSize),
	}
}

// Run processes fragments until the queue is closed (nil) or ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		f, err := c.in.Take(ctx)
		if errors.Is(err, relay.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		c.process(ctx, f)
	}
}

// Prev returns the caption currently displayed. Only safe once Run returned
// or from the consumer goroutine.
func (c *Consumer) Prev() string { return c.prev }

// Shown returns how many captions reached the sink.
func (c *Consumer) Shown() int { return c.shown }

func (c *Consumer) process(ctx context.Context, f recognition.Fragment) {
	text := f.Text
	if c.cfg.LastSentenceOnly && !f.IsFinal {
		text = LastSentence(text)
	}
	if text == "" {
		return
	}

	start := time.Now()
	translation, err := c.translator.Translate(ctx, translate.Request{
		Text:    text,
		Source:  c.cfg.Source,
		Target:  c.cfg.Target,
		Context: c.window.Text(c.cfg.ContextWords),
	})
	c.metrics.RecordTranslation(ctx, c.translator.Name(), time.Since(start), err)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Consumer: translation failed, skipping fragment: %v", err)
		}
		return
	}
	if translation == "" {
		return
	}

	merged, overlap := translation, false
	if !translate.IsIncremental(c.translator) {
		merged, overlap = Merge(c.prev, translation)
	}
	c.prev = merged

	if err := c.sink.Show(Caption{Text: merged, Speaker: f.Speaker, Final: f.IsFinal, Overlap: overlap}); err != nil {
		log.Printf("Consumer: sink error: %v", err)
	}
	c.shown++
	c.metrics.RecordCaption(ctx, overlap)

	if f.IsFinal {
		c.window.Push(f.Text)
	}
}
