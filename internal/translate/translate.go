// Package translate turns transcript fragments into target-language text.
package translate

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/leonardotrapani/livecaption/internal/language"
)

// Request is one fragment to translate.
type Request struct {
	Text    string
	Source  string // BCP-47 source tag, e.g. "ru-RU"
	Target  string // BCP-47 target tag
	Context string // recent final transcripts in the source language
}

// Translator translates one fragment at a time.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}

// Incremental is implemented by translators whose successive outputs for one
// utterance already extend each other, so the caption needs no merge step.
type Incremental interface {
	Incremental() bool
}

// ContextLimiter is implemented by translators that want at most
// ContextWords words of context per request.
type ContextLimiter interface {
	ContextWords() int
}

// IsIncremental reports whether t opts out of merging.
func IsIncremental(t Translator) bool {
	inc, ok := t.(Incremental)
	return ok && inc.Incremental()
}

// Passthrough returns the transcript unchanged.
type Passthrough struct {
	// Verbatim shows transcripts as they arrive instead of merging them.
	Verbatim bool
}

func (Passthrough) Name() string { return "none" }

func (Passthrough) Translate(_ context.Context, req Request) (string, error) {
	return req.Text, nil
}

func (p Passthrough) Incremental() bool { return p.Verbatim }

// Config selects and configures a translator.
type Config struct {
	Provider string // "deepl", "openai", "groq" or "none"
	APIKey   string
	Model    string
	BaseURL  string // overrides the provider endpoint
	UsePro   bool   // DeepL Pro endpoint
	Source   string
	Target   string
	Verbatim bool // passthrough only

	HTTPClient *http.Client
}

// Disabled reports whether cfg asks for no translation at all: no target, or
// a target equal to the source.
func (c Config) Disabled() bool {
	return c.Target == "" || c.Provider == "none" || language.Same(c.Source, c.Target)
}

// New builds the translator for cfg. A disabled config, or a target the
// provider cannot produce, yields a Passthrough.
func New(cfg Config) (Translator, error) {
	if cfg.Disabled() {
		log.Printf("translate: translation disabled, showing %s transcript", cfg.Source)
		return Passthrough{Verbatim: cfg.Verbatim}, nil
	}

	switch strings.ToLower(cfg.Provider) {
	case "deepl", "":
		if _, ok := DeepLLanguage(cfg.Target); !ok {
			log.Printf("translate: target language %q not supported by DeepL, supported codes: %s",
				cfg.Target, strings.Join(deeplSupported, ", "))
			log.Printf("translate: using source language for output (no translation)")
			return Passthrough{Verbatim: cfg.Verbatim}, nil
		}
		if _, ok := DeepLLanguage(cfg.Source); !ok {
			log.Printf("translate: source language %q not supported by DeepL, sending it as is", cfg.Source)
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("DeepL API key required")
		}
		return NewDeepL(cfg), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAI(cfg), nil

	case "groq":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = groqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = groqDefaultModel
		}
		t := NewOpenAI(cfg)
		t.name = "groq"
		return t, nil

	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", cfg.Provider)
	}
}
