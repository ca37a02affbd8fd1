package caption

import "strings"

// Window keeps the last few final transcripts as translation context.
type Window struct {
	size  int
	items []string
}

// NewWindow returns a window holding at most size entries. Size below 1 holds
// nothing.
func NewWindow(size int) *Window {
	if size < 0 {
		size = 0
	}
	return &Window{size: size, items: make([]string, 0, size)}
}

// Push appends text, evicting the oldest entry when full.
func (w *Window) Push(text string) {
	if w.size == 0 || text == "" {
		return
	}
	if len(w.items) == w.size {
		copy(w.items, w.items[1:])
		w.items = w.items[:len(w.items)-1]
	}
	w.items = append(w.items, text)
}

// Len returns the number of entries held.
func (w *Window) Len() int { return len(w.items) }

// Text joins the entries with spaces and keeps only the last maxWords words.
// maxWords <= 0 means no cap.
func (w *Window) Text(maxWords int) string {
	joined := strings.Join(w.items, " ")
	if maxWords <= 0 {
		return joined
	}
	return LastWords(joined, maxWords)
}
