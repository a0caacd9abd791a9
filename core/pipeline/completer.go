package pipeline

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultCompleter creates a CompleteFunc backed by an OpenAI-compatible
// chat completion endpoint. baseURL may be empty for the public API.
func DefaultCompleter(apiKey, chatModel, baseURL string) CompleteFunc {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(chatModel),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion: empty response")
		}
		return resp.Choices[0].Message.Content, nil
	}
}
