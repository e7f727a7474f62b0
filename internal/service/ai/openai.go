package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/config"
)

// openAIBackend calls the OpenAI chat completions endpoint.
type openAIBackend struct {
	client openai.Client
	model  string
}

func newOpenAIBackend(cfg config.AIConfig) *openAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	return &openAIBackend{
		client: openai.NewClient(opts...),
		model:  cfg.OpenAIModel,
	}
}

func (b *openAIBackend) generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			params = append(params, openai.SystemMessage(msg.Content))
		case schema.User:
			params = append(params, openai.UserMessage(msg.Content))
		case schema.Assistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		}
	}

	res, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: params,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion returned no choices")
	}

	return schema.AssistantMessage(res.Choices[0].Message.Content, nil), nil
}
