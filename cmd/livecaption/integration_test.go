//go:build integration

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/recognition/deepgram"
	"github.com/leonardotrapani/livecaption/internal/recognition/google"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

const testTimeout = 45 * time.Second

// silence plays n chunks of 100 ms of silence, then ends.
type silence struct{ n int }

func (s *silence) Next(ctx context.Context) ([]byte, error) {
	if s.n == 0 {
		return nil, io.EOF
	}
	s.n--
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}
	return make([]byte, 3200), nil
}

func streamSilence(t *testing.T, backend recognition.Backend) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	stream, err := backend.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	err = stream.Run(ctx, &silence{n: 20}, func(f recognition.Fragment) {
		t.Logf("fragment: %+v", f)
	})
	if err != nil && !errors.Is(err, recognition.ErrStreamEnded) {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestDeepgramStream(t *testing.T) {
	key := os.Getenv("DEEPGRAM_API_KEY")
	if key == "" {
		t.Skip("DEEPGRAM_API_KEY not set")
	}
	cfg := recognition.DefaultConfig()
	cfg.Language = "en-US"
	b, err := deepgram.New(deepgram.Config{APIKey: key, Recognition: cfg})
	if err != nil {
		t.Fatal(err)
	}
	streamSilence(t, b)
}

func TestGoogleStream(t *testing.T) {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("GOOGLE_APPLICATION_CREDENTIALS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	b, err := google.New(ctx, google.Config{Recognition: recognition.DefaultConfig()})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	streamSilence(t, b)
}

func TestDeepLTranslate(t *testing.T) {
	key := os.Getenv("DEEPL_API_KEY")
	if key == "" {
		t.Skip("DEEPL_API_KEY not set")
	}
	tr, err := translate.New(translate.Config{
		Provider: "deepl",
		APIKey:   key,
		UsePro:   os.Getenv("USE_DEEPL_PRO") == "true",
		Source:   "ru-RU",
		Target:   "en-US",
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	got, err := tr.Translate(ctx, translate.Request{Text: "Привет, мир", Source: "ru-RU", Target: "en-US"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got == "" {
		t.Fatal("empty translation")
	}
	t.Logf("translation: %q", got)
}
