package render

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/livecaption/internal/caption"
)

// FullscreenSink takes over the terminal's alternate screen and shows the
// last finished caption above the one in progress.
type FullscreenSink struct {
	out    *termenv.Output
	style  styleBox
	height int

	mu       sync.Mutex
	open     bool
	previous string
}

// NewFullscreenSink draws on w, which is height rows tall (0 means 24).
func NewFullscreenSink(w io.Writer, height int, style Style, opts ...termenv.OutputOption) *FullscreenSink {
	if height <= 0 {
		height = 24
	}
	s := &FullscreenSink{out: termenv.NewOutput(w, opts...), height: height}
	s.style.set(style)
	return s
}

// SetStyle swaps the style for subsequent captions.
func (s *FullscreenSink) SetStyle(style Style) { s.style.set(style) }

// Open switches to the alternate screen.
func (s *FullscreenSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	s.out.AltScreen()
	s.out.HideCursor()
	s.out.ClearScreen()
	s.open = true
	return nil
}

func (s *FullscreenSink) Show(c caption.Caption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := s.frame(c)
	s.out.ClearScreen()
	top := (s.height - strings.Count(frame, "\n") - 1) / 2
	s.out.MoveCursor(max(top, 0)+1, 1)
	_, err := io.WriteString(s.out, frame)

	if c.Final {
		s.previous = c.Text
	}
	return err
}

// frame lays out the speaker label, the previous caption and the current one.
func (s *FullscreenSink) frame(c caption.Caption) string {
	st := s.style.get()
	width := st.width()
	wrap := lipgloss.NewStyle().Width(width)

	var parts []string
	if label := SpeakerLabel(c.Speaker); st.ShowSpeaker && label != "" {
		parts = append(parts, speakerStyle(c.Speaker).Render(label))
	}
	if s.previous != "" && s.previous != c.Text {
		parts = append(parts, wrap.Foreground(ColorMuted).Render(lastLines(wrap.Render(s.previous), 1)))
	}

	current := wrap.Foreground(ColorCaption).Bold(st.Bold).Render(c.Text)
	parts = append(parts, lastLines(current, st.lines()))
	return strings.Join(parts, "\n")
}

// Close restores the main screen. Safe to call more than once.
func (s *FullscreenSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.out.ShowCursor()
	s.out.ExitAltScreen()
	s.open = false
	return nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
