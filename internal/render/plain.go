package render

import (
	"fmt"
	"io"

	"github.com/leonardotrapani/livecaption/internal/caption"
)

// PlainSink writes one uncolored line per caption, for pipes and files. With
// FinalOnly set, interim captions are skipped.
type PlainSink struct {
	w         io.Writer
	FinalOnly bool
	Speaker   bool
}

// NewPlainSink writes final captions to w.
func NewPlainSink(w io.Writer) *PlainSink {
	return &PlainSink{w: w, FinalOnly: true}
}

func (s *PlainSink) Show(c caption.Caption) error {
	if s.FinalOnly && !c.Final {
		return nil
	}
	if label := SpeakerLabel(c.Speaker); s.Speaker && label != "" {
		_, err := fmt.Fprintf(s.w, "[%s] %s\n", label, c.Text)
		return err
	}
	_, err := fmt.Fprintln(s.w, c.Text)
	return err
}
