package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/leonardotrapani/livecaption/internal/language"
)

const (
	openaiDefaultModel = "gpt-4o-mini"
	groqBaseURL        = "https://api.groq.com/openai/v1"
	groqDefaultModel   = "llama-3.3-70b-versatile"

	// promptContextWords bounds how much prior transcript goes to the model.
	promptContextWords = 7
)

// OpenAI translates with a chat completion in JSON mode. It also serves any
// OpenAI-compatible API through Config.BaseURL.
type OpenAI struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI chat translator.
func NewOpenAI(cfg Config) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = openaiDefaultModel
	}
	return &OpenAI{
		name:   "openai",
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return o.name }

// BuildSystemPrompt generates the interpreter instructions for a language pair.
func BuildSystemPrompt(source, target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a simultaneous interpreter translating live speech from %s to %s.\n\n",
		language.Name(source), language.Name(target))
	b.WriteString("Rules:\n")
	b.WriteString("- Translate only the text, never the context\n")
	b.WriteString("- The text may be an unfinished sentence; translate it as it stands\n")
	b.WriteString("- Keep names, numbers and technical terms intact\n")
	b.WriteString("- Do not add explanations or notes\n")
	b.WriteString(`- Respond with a JSON object: {"translation": "<translated text>"}` + "\n")
	return b.String()
}

// ContextWords caps the context the caller sends with each request.
func (o *OpenAI) ContextWords() int { return promptContextWords }

// BuildUserPrompt carries the fragment and the words said before it.
func BuildUserPrompt(text, context string) string {
	if context == "" {
		return "Text: " + text
	}
	return fmt.Sprintf("Context: %s\nText: %s", context, text)
}

type translationReply struct {
	Translation string `json:"translation"`
}

func (o *OpenAI) Translate(ctx context.Context, req Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt(req.Source, req.Target)},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(req.Text, req.Context)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		log.Printf("%s: API call failed after %v: %v", o.name, time.Since(start), err)
		return "", fmt.Errorf("%s chat completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no response choices", o.name)
	}

	var reply translationReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		return "", fmt.Errorf("%s: decode translation: %w", o.name, err)
	}
	return strings.TrimSpace(reply.Translation), nil
}
