package config

import (
	"os"
	"strings"

	"github.com/leonardotrapani/livecaption/internal/audio"
	"github.com/leonardotrapani/livecaption/internal/caption"
	"github.com/leonardotrapani/livecaption/internal/recognition"
	"github.com/leonardotrapani/livecaption/internal/recognition/deepgram"
	"github.com/leonardotrapani/livecaption/internal/recognition/google"
	"github.com/leonardotrapani/livecaption/internal/render"
	"github.com/leonardotrapani/livecaption/internal/translate"
)

// envVars maps provider names to the environment variable holding their key.
var envVars = map[string]string{
	"deepgram": "DEEPGRAM_API_KEY",
	"deepl":    "DEEPL_API_KEY",
	"openai":   "OPENAI_API_KEY",
	"groq":     "GROQ_API_KEY",
	"google":   "GOOGLE_APPLICATION_CREDENTIALS",
}

// EnvVarForProvider returns the environment variable for a provider, or ""
func EnvVarForProvider(name string) string {
	return envVars[name]
}

// TargetLanguage returns general.target, falling back to the source.
func (c *Config) TargetLanguage() string {
	if c.General.Target != "" {
		return c.General.Target
	}
	return c.General.Source
}

// resolveAPIKey prefers providers.<name>.api_key over the environment.
func (c *Config) resolveAPIKey(name string) string {
	if pc, ok := c.Providers[name]; ok && pc.APIKey != "" {
		return pc.APIKey
	}
	if env := EnvVarForProvider(name); env != "" && name != "google" {
		return os.Getenv(env)
	}
	return ""
}

func (c *Config) googleCredentials() string {
	if pc, ok := c.Providers["google"]; ok && pc.CredentialsFile != "" {
		return pc.CredentialsFile
	}
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}

// useDeepLPro is translation.use_pro or USE_DEEPL_PRO=true.
func (c *Config) useDeepLPro() bool {
	return c.Translation.UsePro || strings.EqualFold(os.Getenv("USE_DEEPL_PRO"), "true")
}

func (c *Config) ToAudioConfig() audio.Config {
	return audio.Config{
		SampleRate:      c.Audio.SampleRate,
		Channels:        c.Audio.Channels,
		FramesPerBuffer: c.Audio.FramesPerBuffer,
		QueueSize:       c.Audio.QueueSize,
		Device:          c.Audio.Device,
		Backend:         c.Audio.Backend,
	}
}

func (c *Config) ToRecognitionConfig() recognition.Config {
	return recognition.Config{
		Language:       c.General.Source,
		SampleRate:     c.Audio.SampleRate,
		InterimResults: c.Recognition.InterimResults,
		Diarize:        c.Recognition.Diarize,
	}
}

func (c *Config) ToDeepgramConfig() deepgram.Config {
	return deepgram.Config{
		Endpoint:    c.Recognition.Endpoint,
		APIKey:      c.resolveAPIKey("deepgram"),
		Model:       c.Recognition.Model,
		Recognition: c.ToRecognitionConfig(),
	}
}

func (c *Config) ToGoogleConfig() google.Config {
	return google.Config{
		Recognition:     c.ToRecognitionConfig(),
		CredentialsFile: c.googleCredentials(),
		Model:           c.Recognition.Model,
		MaxSpeakers:     c.Recognition.MaxSpeakers,
	}
}

func (c *Config) ToTranslateConfig() translate.Config {
	return translate.Config{
		Provider: c.Translation.Provider,
		APIKey:   c.resolveAPIKey(c.Translation.Provider),
		Model:    c.Translation.Model,
		BaseURL:  c.Translation.BaseURL,
		UsePro:   c.useDeepLPro(),
		Source:   c.General.Source,
		Target:   c.TargetLanguage(),
	}
}

func (c *Config) ToCaptionConfig() caption.Config {
	return caption.Config{
		Source:           c.General.Source,
		Target:           c.TargetLanguage(),
		ContextSize:      c.Translation.ContextSize,
		LastSentenceOnly: c.Translation.LastSentenceOnly,
	}
}

func (c *Config) ToStyle() render.Style {
	return render.Style{
		Width:       c.Caption.Width,
		Lines:       c.Caption.Lines,
		ShowSpeaker: c.Caption.ShowSpeaker,
		Bold:        c.Caption.Bold,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for k, v := range c.Providers {
		out.Providers[k] = v
	}
	return &out
}
