package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	deeplFreeURL = "https://api-free.deepl.com/v2/translate"
	deeplProURL  = "https://api.deepl.com/v2/translate"
)

var deeplSupported = []string{
	"BG", "CS", "DA", "DE", "EL", "EN", "EN-GB", "EN-US", "ES", "ET", "FI",
	"FR", "HU", "ID", "IT", "JA", "KO", "LT", "LV", "NB", "NL", "PL", "PT",
	"PT-BR", "PT-PT", "RO", "RU", "SK", "SL", "SV", "TR", "UK", "ZH",
}

// deeplAliases are country codes users commonly type for a language.
var deeplAliases = map[string]string{
	"CH": "ZH",
	"CN": "ZH",
	"CZ": "CS",
	"GR": "EL",
}

var deeplIndex = func() map[string]bool {
	m := make(map[string]bool, len(deeplSupported))
	for _, c := range deeplSupported {
		m[c] = true
	}
	return m
}()

// DeepLLanguage maps a BCP-47 tag to a DeepL code: an exact upper-case match
// first, then the alias table, then the same two steps on the base language.
func DeepLLanguage(code string) (string, bool) {
	c := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
	if c == "" {
		return "", false
	}
	if deeplIndex[c] {
		return c, true
	}
	if alias, ok := deeplAliases[c]; ok {
		return alias, true
	}
	base, _, _ := strings.Cut(c, "-")
	if deeplIndex[base] {
		return base, true
	}
	if alias, ok := deeplAliases[base]; ok {
		return alias, true
	}
	return "", false
}

// deeplSource returns the code sent as source_lang. DeepL only accepts base
// languages there, so "EN-US" becomes "EN". Unknown codes go out unchanged.
func deeplSource(code string) string {
	c, ok := DeepLLanguage(code)
	if !ok {
		return strings.ToUpper(code)
	}
	base, _, _ := strings.Cut(c, "-")
	return base
}

// APIError is a non-2xx response from a translation service.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// DeepL calls the DeepL REST API.
type DeepL struct {
	apiKey string
	url    string
	client *http.Client
}

// NewDeepL returns a DeepL translator for the free endpoint, or the Pro one
// when cfg.UsePro is set. cfg.BaseURL overrides both.
func NewDeepL(cfg Config) *DeepL {
	url := deeplFreeURL
	if cfg.UsePro {
		url = deeplProURL
	}
	if cfg.BaseURL != "" {
		url = strings.TrimRight(cfg.BaseURL, "/") + "/v2/translate"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DeepL{apiKey: cfg.APIKey, url: url, client: client}
}

func (d *DeepL) Name() string { return "deepl" }

type deeplRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
	Context    string   `json:"context,omitempty"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

func (d *DeepL) Translate(ctx context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	target, ok := DeepLLanguage(req.Target)
	if !ok {
		return "", fmt.Errorf("deepl: unsupported target language %q", req.Target)
	}

	body, err := json.Marshal(deeplRequest{
		Text:       []string{req.Text},
		SourceLang: deeplSource(req.Source),
		TargetLang: target,
		Context:    req.Context,
	})
	if err != nil {
		return "", fmt.Errorf("deepl: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("deepl: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("deepl: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("deepl: request failed with status %d: %s", resp.StatusCode, msg)
		return "", &APIError{Service: "deepl", StatusCode: resp.StatusCode, Body: string(msg)}
	}

	var out deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("deepl: decode response: %w", err)
	}
	if len(out.Translations) == 0 {
		return "", nil
	}
	return out.Translations[0].Text, nil
}
