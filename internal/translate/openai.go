package translate

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	apiKeyEnv           = "OPENAI_API_KEY"
	defaultOpenAIModel  = openai.GPT4oMini
	translationTemp     = 0.2
	systemPromptPattern = "You are a professional translator. Translate the user's text into the language with code %q. Preserve the meaning and tone. Only output the translated text."
)

// OpenAIBackend translates text through a chat-completion model.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds the production backend, reading the credential from
// the process environment.
func NewOpenAIBackend(model string) (*OpenAIBackend, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", apiKeyEnv)
	}
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Translate sends one chunk to the model and returns its translation.
func (b *OpenAIBackend) Translate(ctx context.Context, text, targetCode string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: translationTemp,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(systemPromptPattern, targetCode),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("translation backend returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
