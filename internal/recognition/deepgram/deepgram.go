// Package deepgram streams audio to Deepgram's live transcription websocket.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/leonardotrapani/livecaption/internal/language"
	"github.com/leonardotrapani/livecaption/internal/recognition"
)

// DefaultEndpoint is Deepgram's live listen endpoint.
const DefaultEndpoint = "wss://api.deepgram.com/v1/listen"

// nova2Languages are served by nova-2; English gets nova-3 and everything
// else falls back to the enhanced model.
var nova2Languages = map[string]bool{
	"bg": true, "ca": true, "cs": true, "da": true, "de": true, "el": true,
	"es": true, "et": true, "fi": true, "fr": true, "hi": true, "hu": true,
	"id": true, "it": true, "ja": true, "ko": true, "lt": true, "lv": true,
	"ms": true, "nl": true, "no": true, "pl": true, "pt": true, "ro": true,
	"ru": true, "sk": true, "sv": true, "th": true, "tr": true, "uk": true,
	"vi": true, "zh": true,
}

// ModelFor picks the Deepgram model for a language tag.
func ModelFor(lang string) string {
	base := language.Base(lang)
	switch {
	case base == "en":
		return "nova-3"
	case nova2Languages[base]:
		return "nova-2"
	default:
		return "enhanced"
	}
}

// Config configures the Deepgram backend.
type Config struct {
	Endpoint    string // defaults to DefaultEndpoint
	APIKey      string
	Model       string // empty picks one with ModelFor
	Recognition recognition.Config
	Dialer      *websocket.Dialer // defaults to websocket.DefaultDialer
}

// Backend opens Deepgram streams.
type Backend struct {
	cfg Config
}

// New returns a Deepgram backend. The API key is required.
func New(cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepgram: api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Recognition.SampleRate == 0 {
		cfg.Recognition.SampleRate = recognition.DefaultConfig().SampleRate
	}
	if cfg.Model == "" {
		cfg.Model = ModelFor(cfg.Recognition.Language)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Backend{cfg: cfg}, nil
}

func (b *Backend) Name() string { return "deepgram" }

// buildURL constructs the websocket URL with query parameters
func (b *Backend) buildURL() (string, error) {
	u, err := url.Parse(b.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	rc := b.cfg.Recognition
	q := u.Query()
	q.Set("model", b.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(rc.SampleRate))
	q.Set("punctuate", "true")
	q.Set("filler_words", "true")
	q.Set("interim_results", strconv.FormatBool(rc.InterimResults))
	q.Set("diarize", strconv.FormatBool(rc.Diarize))
	if lang := language.Base(rc.Language); lang != "" {
		q.Set("language", lang)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials Deepgram. The stream configuration travels in the URL, so the
// stream is ready for audio once the handshake completes.
func (b *Backend) Open(ctx context.Context) (recognition.Stream, error) {
	wsURL, err := b.buildURL()
	if err != nil {
		return nil, recognition.NewClientError(err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+b.cfg.APIKey)

	conn, resp, err := b.cfg.Dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("deepgram: dial failed with status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, recognition.NewClientError(fmt.Errorf("websocket dial: %s: %w", resp.Status, err))
			}
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	log.Printf("deepgram: connected, model=%s, language=%s", b.cfg.Model, language.Base(b.cfg.Recognition.Language))
	return &stream{conn: conn}, nil
}

type stream struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// closeStream tells Deepgram no more audio is coming.
type closeStream struct {
	Type string `json:"type"`
}

type wsResponse struct {
	Type     string    `json:"type"`
	Channel  *channel  `json:"channel,omitempty"`
	Metadata *metadata `json:"metadata,omitempty"`
	IsFinal  bool      `json:"is_final,omitempty"`

	// error frames
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
}

type channel struct {
	Alternatives []alternative `json:"alternatives,omitempty"`
}

type alternative struct {
	Transcript string `json:"transcript"`
	Words      []word `json:"words,omitempty"`
}

type word struct {
	Word    string `json:"word"`
	Speaker *int   `json:"speaker,omitempty"`
}

type metadata struct {
	RequestID string `json:"request_id"`
}

func (s *stream) Run(ctx context.Context, audio recognition.Audio, emit func(recognition.Fragment)) error {
	g, gctx := errgroup.WithContext(ctx)

	// closing the socket is the only way to unblock ReadMessage
	stop := context.AfterFunc(gctx, func() { _ = s.Close() })
	defer stop()

	var audioDone atomic.Bool

	g.Go(func() error {
		for {
			chunk, err := audio.Next(gctx)
			if errors.Is(err, io.EOF) {
				audioDone.Store(true)
				if err := s.conn.WriteJSON(closeStream{Type: "CloseStream"}); err != nil {
					return recognition.NewTransientError(fmt.Errorf("send CloseStream: %w", err))
				}
				log.Printf("deepgram: sent CloseStream, waiting for final transcript")
				return nil
			}
			if err != nil {
				return err
			}
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return recognition.NewTransientError(fmt.Errorf("websocket write: %w", err))
			}
		}
	})

	g.Go(func() error {
		for {
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return readError(err, audioDone.Load())
			}
			handleMessage(message, emit)
		}
	})

	return g.Wait()
}

// readError maps a websocket read failure once the peer has gone away.
func readError(err error, audioDone bool) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.ClosePolicyViolation || (closeErr.Code >= 4000 && closeErr.Code < 5000) {
			return recognition.NewClientError(fmt.Errorf("deepgram closed stream: %w", err))
		}
	}
	if audioDone {
		return nil
	}
	if closeErr != nil && closeErr.Code == websocket.CloseNormalClosure {
		return recognition.ErrStreamEnded
	}
	return recognition.NewTransientError(fmt.Errorf("websocket read: %w", err))
}

func handleMessage(message []byte, emit func(recognition.Fragment)) {
	var resp wsResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		log.Printf("deepgram: parse error: %v", err)
		return
	}

	switch resp.Type {
	case "Results":
		if resp.Channel == nil || len(resp.Channel.Alternatives) == 0 {
			return
		}
		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}
		var tags []int
		for _, w := range alt.Words {
			if w.Speaker != nil {
				tags = append(tags, *w.Speaker)
			}
		}
		emit(recognition.Fragment{
			Text:    alt.Transcript,
			IsFinal: resp.IsFinal,
			Speaker: recognition.DominantSpeaker(tags),
		})

	case "Metadata":
		if resp.Metadata != nil {
			log.Printf("deepgram: session started, request_id=%s", resp.Metadata.RequestID)
		}

	case "Error":
		msg := resp.Message
		if resp.Description != "" {
			msg = fmt.Sprintf("%s: %s", msg, resp.Description)
		}
		log.Printf("deepgram: error: %s", msg)

	case "UtteranceEnd", "SpeechStarted":

	default:
		log.Printf("deepgram: unknown message type: %s", resp.Type)
	}
}

// Close sends a close frame (best effort) and drops the connection.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
