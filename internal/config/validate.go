package config

import (
	"fmt"

	"github.com/leonardotrapani/livecaption/internal/language"
)

func (c *Config) Validate() error {
	if c.General.Source == "" {
		return fmt.Errorf("invalid general.source: empty")
	}
	if !language.IsValidCode(c.General.Source) {
		return fmt.Errorf("invalid general.source: %s (use codes like 'en-US', 'ru-RU', 'de')", c.General.Source)
	}
	if c.General.Target != "" && !language.IsValidCode(c.General.Target) {
		return fmt.Errorf("invalid general.target: %s (use codes like 'en-US', 'ru-RU', 'de')", c.General.Target)
	}

	if err := c.ToAudioConfig().Validate(); err != nil {
		return err
	}

	switch c.Recognition.Provider {
	case "deepgram":
		if c.resolveAPIKey("deepgram") == "" {
			return fmt.Errorf("Deepgram API key required: not found in config (providers.deepgram.api_key) or environment variable (DEEPGRAM_API_KEY)")
		}
	case "google":
		// credentials fall back to application default credentials
	default:
		return fmt.Errorf("unsupported recognition.provider: %s (must be deepgram or google)", c.Recognition.Provider)
	}
	if c.Recognition.AttemptTimeout < 0 {
		return fmt.Errorf("invalid recognition.attempt_timeout: %v", c.Recognition.AttemptTimeout)
	}
	if c.Recognition.MaxSpeakers < 0 {
		return fmt.Errorf("invalid recognition.max_speakers: %d", c.Recognition.MaxSpeakers)
	}

	if err := c.validateTranslation(); err != nil {
		return err
	}

	validModes := map[string]bool{"line": true, "fullscreen": true, "plain": true}
	if !validModes[c.Caption.Mode] {
		return fmt.Errorf("invalid caption.mode: %s (must be line, fullscreen, or plain)", c.Caption.Mode)
	}
	if c.Caption.Width < 0 {
		return fmt.Errorf("invalid caption.width: %d", c.Caption.Width)
	}
	if c.Caption.Lines < 0 {
		return fmt.Errorf("invalid caption.lines: %d", c.Caption.Lines)
	}

	return nil
}

func (c *Config) validateTranslation() error {
	if language.Same(c.General.Source, c.TargetLanguage()) {
		// nothing is translated, provider keys are not needed
		return nil
	}

	switch c.Translation.Provider {
	case "none", "":
	case "deepl":
		if c.resolveAPIKey("deepl") == "" {
			return fmt.Errorf("DeepL API key required: not found in config (providers.deepl.api_key) or environment variable (DEEPL_API_KEY)")
		}
	case "openai":
		if c.resolveAPIKey("openai") == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		}
	case "groq":
		if c.resolveAPIKey("groq") == "" {
			return fmt.Errorf("Groq API key required: not found in config (providers.groq.api_key) or environment variable (GROQ_API_KEY)")
		}
	default:
		return fmt.Errorf("unsupported translation.provider: %s (must be deepl, openai, groq, or none)", c.Translation.Provider)
	}
	return nil
}
