package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
)

// Completer produces a single chat completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIConfig configures OpenAICompleter.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAICompleter posts OpenAI-compatible chat completion requests.
type OpenAICompleter struct {
	client      *resty.Client
	model       string
	temperature float32
}

const defaultLLMBaseURL = "https://api.openai.com/v1"

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultLLMBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &OpenAICompleter{client: client, model: cfg.Model, temperature: cfg.Temperature}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var body openai.ChatCompletionResponse
	var apiErr openai.ErrorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&body).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("completion failed (status %d): %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("completion failed (status %d)", resp.StatusCode())
	}
	if len(body.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(body.Choices[0].Message.Content), nil
}

const assistantPersona = "You are Perplexico, a helpful and knowledgeable AI research assistant."

func directPrompt(question string) string {
	return fmt.Sprintf(`The user asked: %q

Please provide a helpful, informative response based on your general knowledge. Be conversational, clear, and engaging. If appropriate, you can:

- Explain concepts in simple terms
- Provide examples or analogies
- Offer practical advice or tips
- Ask clarifying questions if needed
- Suggest related topics of interest

Keep your response focused and helpful without being overly verbose.`, question)
}

func synthesisPrompt(question string, sources []Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer the user's question: %q\n\nUse only the numbered search results below. ", question)
	b.WriteString("Cite sources inline using [1], [2] format. Be clear and concise.\n\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", src.Index, src.Title, src.URL, src.Content)
	}
	return b.String()
}
