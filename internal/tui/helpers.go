package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/leonardotrapani/livecaption/internal/config"
	"github.com/leonardotrapani/livecaption/internal/language"
)

var (
	// Recognizers lists the speech recognition backends.
	Recognizers = []string{"deepgram", "google"}

	// Translators lists the translation backends.
	Translators = []string{"deepl", "openai", "groq", "none"}

	captionModes = []string{"line", "fullscreen", "plain"}
)

// providerDisplayNames maps provider IDs to human-readable names.
var providerDisplayNames = map[string]string{
	"deepgram": "Deepgram",
	"google":   "Google Cloud Speech",
	"deepl":    "DeepL",
	"openai":   "OpenAI",
	"groq":     "Groq",
	"none":     "No translation",
}

var captionModeNames = map[string]string{
	"line":       "Single line overlay",
	"fullscreen": "Fullscreen",
	"plain":      "Plain text (pipes and files)",
}

func getProviderDisplayName(providerName string) string {
	if name, ok := providerDisplayNames[providerName]; ok {
		return name
	}
	return providerName
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

func isProviderConfigured(cfg *config.Config, providerName string) bool {
	if pc, ok := cfg.Providers[providerName]; ok {
		return pc.APIKey != ""
	}
	return false
}

func formatProviderOption(cfg *config.Config, name string) string {
	label := getProviderDisplayName(name)
	if isProviderConfigured(cfg, name) {
		label += " (configured)"
	}
	return label
}

func providerOptions(cfg *config.Config, names []string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(names))
	for _, name := range names {
		options = append(options, huh.NewOption(formatProviderOption(cfg, name), name))
	}
	return options
}

// languageOptions lists known languages. A current code with a region, such
// as "ru-RU", is offered first so it survives an unchanged form.
func languageOptions(current string, allowEmpty bool) []huh.Option[string] {
	var options []huh.Option[string]
	if allowEmpty {
		options = append(options, huh.NewOption("Same as source (no translation)", ""))
	}
	if current != "" && language.Base(current) != language.Normalize(current) {
		options = append(options, huh.NewOption(fmt.Sprintf("%s - %s (current)", language.Name(current), current), current))
	}
	for _, l := range language.List() {
		label := fmt.Sprintf("%s - %s", l.Name, l.Code)
		if l.Code == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, l.Code))
	}
	return options
}

func captionModeOptions() []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(captionModes))
	for _, m := range captionModes {
		options = append(options, huh.NewOption(captionModeNames[m], m))
	}
	return options
}

// answers holds the form values before they are applied to a config.
type answers struct {
	Source string
	Target string

	Recognizer      string
	DeepgramKey     string
	CredentialsFile string

	Translator    string
	TranslatorKey string
	UseDeepLPro   bool

	CaptionMode string
	ShowSpeaker bool
	Notify      bool
}

func answersFrom(cfg *config.Config) answers {
	return answers{
		Source:          cfg.General.Source,
		Target:          cfg.General.Target,
		Recognizer:      cfg.Recognition.Provider,
		CredentialsFile: cfg.Providers["google"].CredentialsFile,
		Translator:      cfg.Translation.Provider,
		UseDeepLPro:     cfg.Translation.UsePro,
		CaptionMode:     cfg.Caption.Mode,
		ShowSpeaker:     cfg.Caption.ShowSpeaker,
		Notify:          cfg.General.Notify,
	}
}

// apply writes a into cfg. Empty key fields keep the stored keys.
func (a answers) apply(cfg *config.Config) {
	cfg.General.Source = a.Source
	cfg.General.Target = a.Target
	if language.Same(a.Source, a.Target) {
		cfg.General.Target = ""
	}

	cfg.Recognition.Provider = a.Recognizer
	if a.Recognizer == "deepgram" && a.DeepgramKey != "" {
		setProvider(cfg, "deepgram", func(pc *config.ProviderConfig) { pc.APIKey = a.DeepgramKey })
	}
	if a.Recognizer == "google" {
		setProvider(cfg, "google", func(pc *config.ProviderConfig) { pc.CredentialsFile = a.CredentialsFile })
	}

	cfg.Translation.Provider = a.Translator
	cfg.Translation.UsePro = a.Translator == "deepl" && a.UseDeepLPro
	if a.Translator != "none" && a.TranslatorKey != "" {
		setProvider(cfg, a.Translator, func(pc *config.ProviderConfig) { pc.APIKey = a.TranslatorKey })
	}

	cfg.Caption.Mode = a.CaptionMode
	cfg.Caption.ShowSpeaker = a.ShowSpeaker
	cfg.General.Notify = a.Notify
}

func setProvider(cfg *config.Config, name string, fn func(*config.ProviderConfig)) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}
	pc := cfg.Providers[name]
	fn(&pc)
	cfg.Providers[name] = pc
}
