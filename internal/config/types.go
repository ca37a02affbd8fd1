package config

import "time"

// GeneralConfig holds the language pair.
type GeneralConfig struct {
	Source string `toml:"source"` // BCP-47 code of the spoken language
	Target string `toml:"target"` // empty means the source, no translation
	Notify bool   `toml:"notify"` // desktop notifications on reconnects and errors
}

type Config struct {
	General     GeneralConfig             `toml:"general"`
	Audio       AudioConfig               `toml:"audio"`
	Recognition RecognitionConfig         `toml:"recognition"`
	Translation TranslationConfig         `toml:"translation"`
	Caption     CaptionConfig             `toml:"caption"`
	Providers   map[string]ProviderConfig `toml:"providers"`
	Metrics     MetricsConfig             `toml:"metrics"`
}

// ProviderConfig holds credentials for a provider
type ProviderConfig struct {
	APIKey          string `toml:"api_key"`
	CredentialsFile string `toml:"credentials_file"` // google only
}

type AudioConfig struct {
	Backend         string `toml:"backend"` // "portaudio" or "pipewire"
	Device          string `toml:"device"`
	SampleRate      int    `toml:"sample_rate"`
	Channels        int    `toml:"channels"`
	FramesPerBuffer int    `toml:"frames_per_buffer"`
	QueueSize       int    `toml:"queue_size"`
}

type RecognitionConfig struct {
	Provider       string        `toml:"provider"` // "deepgram" or "google"
	Model          string        `toml:"model"`
	Endpoint       string        `toml:"endpoint"`
	InterimResults bool          `toml:"interim_results"`
	Diarize        bool          `toml:"diarize"`
	MaxSpeakers    int           `toml:"max_speakers"`
	AttemptTimeout time.Duration `toml:"attempt_timeout"`
}

type TranslationConfig struct {
	Provider         string `toml:"provider"` // "deepl", "openai", "groq" or "none"
	Model            string `toml:"model"`
	BaseURL          string `toml:"base_url"`
	UsePro           bool   `toml:"use_pro"`
	ContextSize      int    `toml:"context_size"`
	LastSentenceOnly bool   `toml:"last_sentence_only"`
}

type CaptionConfig struct {
	Mode        string `toml:"mode"` // "line", "fullscreen" or "plain"
	Width       int    `toml:"width"`
	Lines       int    `toml:"lines"`
	ShowSpeaker bool   `toml:"show_speaker"`
	Bold        bool   `toml:"bold"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"` // empty disables the /metrics endpoint
}
