package config

import (
	"github.com/leonardotrapani/livecaption/internal/audio"
	"github.com/leonardotrapani/livecaption/internal/caption"
	"github.com/leonardotrapani/livecaption/internal/recognition"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	a := audio.DefaultConfig()
	return &Config{
		General: GeneralConfig{
			Source: "ru-RU",
		},
		Audio: AudioConfig{
			Backend:         a.Backend,
			SampleRate:      a.SampleRate,
			Channels:        a.Channels,
			FramesPerBuffer: a.FramesPerBuffer,
			QueueSize:       a.QueueSize,
		},
		Recognition: RecognitionConfig{
			Provider:       "deepgram",
			InterimResults: true,
			Diarize:        true,
			AttemptTimeout: recognition.DefaultAttemptTimeout,
		},
		Translation: TranslationConfig{
			Provider:    "deepl",
			ContextSize: caption.DefaultContextSize,
		},
		Caption: CaptionConfig{
			Mode:        "line",
			Width:       80,
			Lines:       3,
			ShowSpeaker: true,
			Bold:        true,
		},
		Providers: make(map[string]ProviderConfig),
	}
}
