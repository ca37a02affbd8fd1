// Package render draws captions on a terminal or writes them to a stream.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/leonardotrapani/livecaption/internal/recognition"
)

// Color palette for captions
var (
	ColorCaption = lipgloss.Color("#F8FAFC") // Bright white
	ColorMuted   = lipgloss.Color("#94A3B8") // Slate gray

	// speakerColors cycle by diarization tag
	speakerColors = []lipgloss.Color{
		lipgloss.Color("#7C3AED"), // Purple
		lipgloss.Color("#06B6D4"), // Cyan
		lipgloss.Color("#22C55E"), // Green
		lipgloss.Color("#F59E0B"), // Amber
		lipgloss.Color("#EF4444"), // Red
	}
)

// Style is the part of the caption look that can change while running.
type Style struct {
	Width       int  // columns; 0 means 80
	Lines       int  // fullscreen caption lines; 0 means 3
	ShowSpeaker bool // prefix captions with the speaker tag
	Bold        bool
}

// DefaultStyle returns an 80 column, three line layout with speaker labels.
func DefaultStyle() Style {
	return Style{Width: 80, Lines: 3, ShowSpeaker: true, Bold: true}
}

func (s Style) width() int {
	if s.Width <= 0 {
		return 80
	}
	return s.Width
}

func (s Style) lines() int {
	if s.Lines <= 0 {
		return 3
	}
	return s.Lines
}

// styleBox holds a Style shared between the consumer and a config reload.
type styleBox struct {
	mu    sync.RWMutex
	style Style
}

func (b *styleBox) get() Style {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.style
}

func (b *styleBox) set(s Style) {
	b.mu.Lock()
	b.style = s
	b.mu.Unlock()
}

// SpeakerLabel returns "Speaker N" or "" for NoSpeaker.
func SpeakerLabel(speaker int) string {
	if speaker == recognition.NoSpeaker {
		return ""
	}
	return fmt.Sprintf("Speaker %d", speaker)
}

func speakerColor(speaker int) lipgloss.Color {
	if speaker < 0 {
		return speakerColors[0]
	}
	return speakerColors[speaker%len(speakerColors)]
}

func speakerStyle(speaker int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(speakerColor(speaker)).Bold(true)
}

// tail drops leading words until text fits in width cells. A single word
// wider than width is cut from the left.
func tail(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}
	words := strings.Fields(text)
	for len(words) > 1 && lipgloss.Width(strings.Join(words, " ")) > width {
		words = words[1:]
	}
	out := strings.Join(words, " ")
	runes := []rune(out)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width {
		runes = runes[1:]
	}
	return string(runes)
}
