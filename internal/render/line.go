package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/livecaption/internal/caption"
)

// LineSink redraws a single terminal line for every caption and moves to a
// fresh line after each final one.
type LineSink struct {
	out   *termenv.Output
	style styleBox
}

// NewLineSink writes to w. Pass termenv.WithProfile(termenv.Ascii) to drop
// colors, as tests do.
func NewLineSink(w io.Writer, style Style, opts ...termenv.OutputOption) *LineSink {
	s := &LineSink{out: termenv.NewOutput(w, opts...)}
	s.style.set(style)
	return s
}

// SetStyle swaps the style for subsequent captions.
func (s *LineSink) SetStyle(style Style) { s.style.set(style) }

func (s *LineSink) Show(c caption.Caption) error {
	st := s.style.get()

	prefix := ""
	if label := SpeakerLabel(c.Speaker); st.ShowSpeaker && label != "" {
		prefix = label + ": "
	}
	text := tail(c.Text, st.width()-lipgloss.Width(prefix))

	s.out.ClearLine()
	line := "\r"
	if prefix != "" {
		line += s.out.String(prefix).Foreground(s.out.Color(string(speakerColor(c.Speaker)))).Bold().String()
	}
	styled := s.out.String(text)
	if st.Bold {
		styled = styled.Bold()
	}
	line += styled.String()
	if c.Final {
		line += "\n"
	}
	_, err := fmt.Fprint(s.out, line)
	return err
}

// Close ends the current line.
func (s *LineSink) Close() error {
	_, err := fmt.Fprintln(s.out)
	return err
}
