package clarify

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stillroom/clarity-engine/internal/domain"
)

// Generation parameters, fixed across tiers.
const (
	generationTemperature = 0.4
	generationMaxTokens   = 1800
)

// Generator produces raw reflection text from an ordered message list.
// Implementations make a single synchronous call with no retry; transport
// failures surface as errors and the orchestrator applies its fallback.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []domain.Message, input, model string) (string, error)
}

// OpenAIGenerator calls the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
}

// NewOpenAIGenerator creates a generator backed by the OpenAI API.
func NewOpenAIGenerator(apiKey string) *OpenAIGenerator {
	return &OpenAIGenerator{client: openai.NewClient(apiKey)}
}

// Generate sends the system policy, the context window, and the new input
// as one ordered message list and returns the raw completion text.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt string, history []domain.Message, input, model string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		// Treated as an empty reply, not an error; the parser's defaults
		// take over downstream.
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
