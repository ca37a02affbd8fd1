package notify

import (
	"log"
	"os/exec"

	"github.com/leonardotrapani/livecaption/internal/recognition"
)

type Notifier interface {
	StateChanged(st recognition.State)
	Error(msg string)
}

// New returns a Desktop notifier when enabled, Nop otherwise.
func New(enabled bool) Notifier {
	if enabled {
		return Desktop{}
	}
	return Nop{}
}

// Desktop sends notifications through notify-send.
type Desktop struct{}

func (Desktop) StateChanged(st recognition.State) {
	msg, ok := stateMessage(st)
	if !ok {
		return
	}
	cmd := exec.Command("notify-send", "-a", "livecaption", msg)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", "livecaption", "-u", "critical", "livecaption: "+msg)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send error notification: %v", err)
	}
}

// Log writes the same messages to the standard logger.
type Log struct{}

func (Log) StateChanged(st recognition.State) {
	if msg, ok := stateMessage(st); ok {
		log.Print(msg)
	}
}

func (Log) Error(msg string) {
	log.Printf("livecaption: error: %s", msg)
}

// Nop is a Notifier that does absolutely nothing.
type Nop struct{}

func (Nop) StateChanged(st recognition.State) {}
func (Nop) Error(msg string)                  {}

// stateMessage reports whether st is worth telling the user about.
// Connecting and Streaming repeat on every reconnect.
func stateMessage(st recognition.State) (string, bool) {
	switch st {
	case recognition.Reconnecting:
		return "livecaption: recognition lost, reconnecting", true
	case recognition.Errored:
		return "livecaption: recognition error", true
	case recognition.Stopped:
		return "livecaption: captions stopped", true
	default:
		return "livecaption: " + st.String(), false
	}
}
