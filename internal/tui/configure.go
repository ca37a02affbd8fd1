package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"

	"github.com/leonardotrapani/livecaption/internal/config"
	"github.com/leonardotrapani/livecaption/internal/language"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// Run asks for languages, providers, keys and caption mode, starting from
// existing. existing is not modified.
func Run(existing *config.Config) (*ConfigureResult, error) {
	if existing == nil {
		existing = config.DefaultConfig()
	}
	cfg := existing.Clone()
	a := answersFrom(cfg)

	clearScreen()
	fmt.Println(Logo())
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Spoken language").
				Description("Language of the audio being captioned").
				Options(languageOptions(a.Source, false)...).
				Filtering(true).
				Value(&a.Source),
			huh.NewSelect[string]().
				Title("Caption language").
				Description("Captions are translated into this language").
				Options(languageOptions(a.Target, true)...).
				Filtering(true).
				Value(&a.Target),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Speech recognition").
				Options(providerOptions(cfg, Recognizers)...).
				Value(&a.Recognizer),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Deepgram API key").
				Description(keyDescription(cfg, "deepgram")).
				EchoMode(huh.EchoModePassword).
				Value(&a.DeepgramKey),
		).WithHideFunc(func() bool { return a.Recognizer != "deepgram" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Google service account file").
				Description("Leave empty to use GOOGLE_APPLICATION_CREDENTIALS or gcloud credentials").
				Value(&a.CredentialsFile).
				Validate(validateFile),
		).WithHideFunc(func() bool { return a.Recognizer != "google" }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Translation").
				Options(providerOptions(cfg, Translators)...).
				Value(&a.Translator),
		),
		huh.NewGroup(
			huh.NewInput().
				TitleFunc(func() string {
					return getProviderDisplayName(a.Translator) + " API key"
				}, &a.Translator).
				DescriptionFunc(func() string {
					return keyDescription(cfg, a.Translator)
				}, &a.Translator).
				EchoMode(huh.EchoModePassword).
				Value(&a.TranslatorKey),
			huh.NewConfirm().
				Title("Use the DeepL Pro endpoint?").
				Value(&a.UseDeepLPro),
		).WithHideFunc(func() bool { return a.Translator == "none" }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Caption display").
				Options(captionModeOptions()...).
				Value(&a.CaptionMode),
			huh.NewConfirm().
				Title("Show speaker labels?").
				Value(&a.ShowSpeaker),
			huh.NewConfirm().
				Title("Desktop notifications on reconnects and errors?").
				Value(&a.Notify),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return &ConfigureResult{Cancelled: true}, nil
		}
		return nil, err
	}

	a.apply(cfg)

	confirmed, err := showSummary(cfg)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return &ConfigureResult{Cancelled: true}, nil
		}
		return nil, err
	}
	if !confirmed {
		return &ConfigureResult{Cancelled: true}, nil
	}
	return &ConfigureResult{Config: cfg}, nil
}

func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func keyDescription(cfg *config.Config, name string) string {
	if pc, ok := cfg.Providers[name]; ok && pc.APIKey != "" {
		return fmt.Sprintf("Current: %s (leave empty to keep)", maskAPIKey(pc.APIKey))
	}
	if env := config.EnvVarForProvider(name); env != "" {
		return fmt.Sprintf("Leave empty to read %s", env)
	}
	return ""
}

func validateFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read %s", path)
	}
	return nil
}

func summary(cfg *config.Config) string {
	target := cfg.TargetLanguage()
	translation := getProviderDisplayName(cfg.Translation.Provider)
	if language.Same(cfg.General.Source, target) {
		translation = "off (captions in the spoken language)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", StyleHighlight.Render("Spoken:"), language.Name(cfg.General.Source), cfg.General.Source)
	fmt.Fprintf(&b, "%s %s (%s)\n", StyleHighlight.Render("Captions:"), language.Name(target), target)
	fmt.Fprintf(&b, "%s %s\n", StyleHighlight.Render("Recognition:"), getProviderDisplayName(cfg.Recognition.Provider))
	fmt.Fprintf(&b, "%s %s\n", StyleHighlight.Render("Translation:"), translation)
	fmt.Fprintf(&b, "%s %s", StyleHighlight.Render("Display:"), captionModeNames[cfg.Caption.Mode])
	return b.String()
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println(StyleBox.Render(summary(cfg)))
	if err := cfg.Validate(); err != nil {
		fmt.Println(StyleWarning.Render("Warning: " + err.Error()))
	}

	save := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Value(&save),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return false, err
	}
	return save, nil
}
