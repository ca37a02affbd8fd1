package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestDeepLLanguage(t *testing.T) {
	tests := []struct {
		code   string
		want   string
		wantOK bool
	}{
		{"ru-RU", "RU", true},
		{"en-US", "EN-US", true},
		{"en-au", "EN", true},
		{"pt-BR", "PT-BR", true},
		{"de", "DE", true},
		{"cn", "ZH", true},
		{"zh-CN", "ZH", true},
		{"cz", "CS", true},
		{"gr-GR", "EL", true},
		{"ch", "ZH", true},
		{"hi-IN", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := DeepLLanguage(tt.code)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DeepLLanguage(%q) = (%q, %v), want (%q, %v)", tt.code, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDeepLSourceDropsRegion(t *testing.T) {
	if got := deeplSource("en-US"); got != "EN" {
		t.Errorf("deeplSource(en-US) = %q, want EN", got)
	}
	if got := deeplSource("hi-IN"); got != "HI-IN" {
		t.Errorf("deeplSource(hi-IN) = %q, want HI-IN", got)
	}
}

func TestNew_SelectsTranslator(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"no target", Config{Provider: "deepl", Source: "ru-RU"}, "none", false},
		{"same language", Config{Provider: "deepl", Source: "ru-RU", Target: "ru_ru", APIKey: "k"}, "none", false},
		{"deepl", Config{Provider: "deepl", Source: "ru-RU", Target: "en-US", APIKey: "k"}, "deepl", false},
		{"deepl unsupported target", Config{Provider: "deepl", Source: "ru-RU", Target: "hi", APIKey: "k"}, "none", false},
		{"deepl missing key", Config{Provider: "deepl", Source: "ru-RU", Target: "en"}, "", true},
		{"openai", Config{Provider: "openai", Source: "ru-RU", Target: "hi", APIKey: "k"}, "openai", false},
		{"groq", Config{Provider: "groq", Source: "ru-RU", Target: "en", APIKey: "k"}, "groq", false},
		{"openai missing key", Config{Provider: "openai", Source: "ru-RU", Target: "en"}, "", true},
		{"unknown", Config{Provider: "babelfish", Source: "ru-RU", Target: "en"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tr.Name() != tt.wantName {
				t.Errorf("New().Name() = %q, want %q", tr.Name(), tt.wantName)
			}
		})
	}
}

func TestPassthrough(t *testing.T) {
	got, err := Passthrough{}.Translate(context.Background(), Request{Text: "как дела"})
	if err != nil || got != "как дела" {
		t.Errorf("Translate() = (%q, %v)", got, err)
	}
	if IsIncremental(Passthrough{}) {
		t.Error("Passthrough{} should merge")
	}
	if !IsIncremental(Passthrough{Verbatim: true}) {
		t.Error("Passthrough{Verbatim: true} should be incremental")
	}
}

func TestDeepL_Translate(t *testing.T) {
	var got deeplRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("path = %q, want /v2/translate", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "DeepL-Auth-Key secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translations":[{"detected_source_language":"RU","text":"hello everyone"}]}`))
	}))
	defer server.Close()

	d := NewDeepL(Config{APIKey: "secret", BaseURL: server.URL})
	out, err := d.Translate(context.Background(), Request{
		Text:    "привет всем",
		Source:  "ru-RU",
		Target:  "en-US",
		Context: "добрый вечер",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "hello everyone" {
		t.Errorf("Translate() = %q, want %q", out, "hello everyone")
	}

	if len(got.Text) != 1 || got.Text[0] != "привет всем" {
		t.Errorf("text = %v", got.Text)
	}
	if got.SourceLang != "RU" || got.TargetLang != "EN-US" {
		t.Errorf("source/target = %q/%q, want RU/EN-US", got.SourceLang, got.TargetLang)
	}
	if got.Context != "добрый вечер" {
		t.Errorf("context = %q", got.Context)
	}
}

func TestDeepL_NonOKIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Quota exceeded"}`, 456)
	}))
	defer server.Close()

	d := NewDeepL(Config{APIKey: "secret", BaseURL: server.URL})
	out, err := d.Translate(context.Background(), Request{Text: "x", Source: "ru", Target: "en"})
	if out != "" {
		t.Errorf("Translate() = %q, want empty", out)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 456 {
		t.Fatalf("Translate() error = %v, want APIError 456", err)
	}
	if !strings.Contains(apiErr.Body, "Quota") {
		t.Errorf("APIError.Body = %q", apiErr.Body)
	}
}

func TestDeepL_EndpointSelection(t *testing.T) {
	if got := NewDeepL(Config{}).url; got != deeplFreeURL {
		t.Errorf("free url = %q", got)
	}
	if got := NewDeepL(Config{UsePro: true}).url; got != deeplProURL {
		t.Errorf("pro url = %q", got)
	}
}

func TestBuildPrompts(t *testing.T) {
	sys := BuildSystemPrompt("ru-RU", "en-US")
	for _, want := range []string{"Russian", "English", `"translation"`} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q: %s", want, sys)
		}
	}

	if got := BuildUserPrompt("текст", ""); got != "Text: текст" {
		t.Errorf("BuildUserPrompt without context = %q", got)
	}
	if got := BuildUserPrompt("текст", "раньше"); got != "Context: раньше\nText: текст" {
		t.Errorf("BuildUserPrompt with context = %q", got)
	}
}

func TestOpenAI_Translate(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: `{"translation": " good evening "}`,
				},
			}},
		})
	}))
	defer server.Close()

	o := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL + "/v1"})
	if o.ContextWords() != 7 {
		t.Errorf("ContextWords() = %d, want 7", o.ContextWords())
	}

	out, err := o.Translate(context.Background(), Request{Text: "добрый вечер", Source: "ru", Target: "en", Context: "всем"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "good evening" {
		t.Errorf("Translate() = %q, want %q", out, "good evening")
	}

	if got.Model != openaiDefaultModel {
		t.Errorf("model = %q", got.Model)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("response format = %+v, want json_object", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || !strings.Contains(got.Messages[1].Content, "Context: всем") {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAI_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "not json"}}},
		})
	}))
	defer server.Close()

	o := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL + "/v1"})
	if _, err := o.Translate(context.Background(), Request{Text: "x"}); err == nil {
		t.Error("Translate() should fail on a non-JSON reply")
	}
}
