package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/config"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
)

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("model returned an empty reply")

// backend 抽象具体的大模型调用。
type backend interface {
	generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// Service encapsulates the tutor's completion calls.
type Service struct {
	profile  tutor.Profile
	backend  backend
	provider string
}

// NewService creates a completion service for the configured provider.
func NewService(ctx context.Context, cfg config.AIConfig, profile tutor.Profile) (*Service, error) {
	var (
		b   backend
		err error
	)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		if !cfg.Enabled() {
			return nil, fmt.Errorf("OpenAI 凭证缺失，请设置 OPENAI_API_KEY")
		}
		b = newOpenAIBackend(cfg)
	default:
		b, err = newArkBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	return &Service{profile: profile, backend: b, provider: cfg.Provider}, nil
}

// Provider 返回当前使用的补全服务名称。
func (s *Service) Provider() string {
	return s.provider
}

// Complete sends the fixed tutor instruction followed by the full history and returns the
// reply text. Every failure is returned as a *remote.Failure.
func (s *Service) Complete(ctx context.Context, history []chat.Message) (string, error) {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(s.profile.Instruction))
	messages = append(messages, buildHistoryMessages(history)...)

	reply, err := s.generate(ctx, "completion", messages)
	if err != nil {
		return "", err
	}

	zap.S().Infof("[ai] generated reply provider=%s history=%d length=%d", s.provider, len(history), len(reply))
	return reply, nil
}

// Probe issues one trivial completion to check reachability and credentials.
func (s *Service) Probe(ctx context.Context) error {
	messages := []*schema.Message{schema.UserMessage(s.profile.ProbePrompt)}
	if _, err := s.generate(ctx, "probe", messages); err != nil {
		zap.S().Warnf("[ai] startup probe failed provider=%s: %v", s.provider, err)
		return err
	}
	return nil
}

func (s *Service) generate(ctx context.Context, op string, messages []*schema.Message) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply, err = "", remote.Recovered(op, r)
		}
	}()

	resp, genErr := s.backend.generate(ctx, messages)
	if genErr != nil {
		return "", remote.Classify(op, genErr)
	}
	if resp == nil || resp.Content == "" {
		return "", remote.Classify(op, ErrEmptyReply)
	}
	return resp.Content, nil
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

// arkBackend runs the messages through an eino chain ending in the Ark chat model.
type arkBackend struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

func newArkBackend(ctx context.Context, cfg config.AIConfig) (*arkBackend, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("messages", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &arkBackend{chain: runnable}, nil
}

func (b *arkBackend) generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	response, err := b.chain.Invoke(ctx, map[string]any{"messages": messages})
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}
	return response, nil
}
