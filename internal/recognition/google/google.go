// Package google streams audio to Google Cloud Speech-to-Text over gRPC.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/leonardotrapani/livecaption/internal/language"
	"github.com/leonardotrapani/livecaption/internal/recognition"
)

// Config configures the Google backend.
type Config struct {
	Recognition recognition.Config

	// CredentialsFile overrides GOOGLE_APPLICATION_CREDENTIALS when set.
	CredentialsFile string

	// Model is passed through as RecognitionConfig.Model. Empty uses the
	// service default.
	Model string

	// MaxSpeakers bounds diarization. Zero lets the service decide.
	MaxSpeakers int
}

type openFunc func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Backend opens Google streaming recognition calls on one shared client.
type Backend struct {
	cfg    Config
	open   openFunc
	client *speech.Client
}

// New creates the Speech client. Close the backend when done.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	b := newBackend(cfg, func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	})
	b.client = client
	return b, nil
}

func newBackend(cfg Config, open openFunc) *Backend {
	if cfg.Recognition.SampleRate == 0 {
		cfg.Recognition.SampleRate = recognition.DefaultConfig().SampleRate
	}
	return &Backend{cfg: cfg, open: open}
}

func (b *Backend) Name() string { return "google" }

// Close releases the Speech client.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *Backend) streamingConfig() *speechpb.StreamingRecognitionConfig {
	rc := b.cfg.Recognition
	config := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(rc.SampleRate),
		LanguageCode:               language.Normalize(rc.Language),
		EnableAutomaticPunctuation: true,
		Model:                      b.cfg.Model,
	}
	if rc.Diarize {
		config.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          1,
			MaxSpeakerCount:          int32(b.cfg.MaxSpeakers),
		}
	}
	return &speechpb.StreamingRecognitionConfig{
		Config:         config,
		InterimResults: rc.InterimResults,
	}
}

// Open starts a StreamingRecognize call and sends the configuration request.
func (b *Backend) Open(ctx context.Context) (recognition.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	call, err := b.open(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("streaming recognize: %w", err)
	}

	if err := call.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: b.streamingConfig(),
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	log.Printf("google: stream opened, language=%s", language.Normalize(b.cfg.Recognition.Language))
	return &stream{call: call, cancel: cancel}, nil
}

type stream struct {
	call   speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
}

func (s *stream) Run(ctx context.Context, audio recognition.Audio, emit func(recognition.Fragment)) error {
	g, gctx := errgroup.WithContext(ctx)

	// Recv only returns early when the call's own context ends
	stop := context.AfterFunc(gctx, s.cancel)
	defer stop()

	var audioDone atomic.Bool

	g.Go(func() error {
		for {
			chunk, err := audio.Next(gctx)
			if errors.Is(err, io.EOF) {
				audioDone.Store(true)
				if err := s.call.CloseSend(); err != nil {
					return fmt.Errorf("close send: %w", err)
				}
				return nil
			}
			if err != nil {
				return err
			}
			err = s.call.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			})
			if errors.Is(err, io.EOF) {
				// the real status surfaces from Recv
				return nil
			}
			if err != nil {
				return fmt.Errorf("send audio: %w", err)
			}
		}
	})

	g.Go(func() error {
		for {
			resp, err := s.call.Recv()
			if errors.Is(err, io.EOF) {
				if audioDone.Load() {
					return nil
				}
				return recognition.ErrStreamEnded
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return fmt.Errorf("receive: %w", err)
			}
			if resp.GetError() != nil {
				return fmt.Errorf("receive: %w", status.ErrorProto(resp.GetError()))
			}
			if f, ok := topFragment(resp); ok {
				emit(f)
			}
		}
	})

	return g.Wait()
}

// topFragment extracts the first alternative of the first result.
func topFragment(resp *speechpb.StreamingRecognizeResponse) (recognition.Fragment, bool) {
	results := resp.GetResults()
	if len(results) == 0 {
		return recognition.Fragment{}, false
	}
	result := results[0]
	alts := result.GetAlternatives()
	if len(alts) == 0 || alts[0].GetTranscript() == "" {
		return recognition.Fragment{}, false
	}

	var tags []int
	for _, w := range alts[0].GetWords() {
		if tag := w.GetSpeakerTag(); tag != 0 {
			tags = append(tags, int(tag))
		}
	}
	return recognition.Fragment{
		Text:    alts[0].GetTranscript(),
		IsFinal: result.GetIsFinal(),
		Speaker: recognition.DominantSpeaker(tags),
	}, true
}

func (s *stream) Close() error {
	s.cancel()
	return nil
}
