package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	speechModel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(ai)
	if err != nil {
		return nil, err
	}

	var logCfg LogConfig
	if err := env.Parse(&logCfg); err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}

	return &Config{Server: server, AI: ai, Speech: speech, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Debug bool `env:"LOG_DEBUG" envDefault:"false"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// 可选的补全服务提供方。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string   `env:"AI_PROVIDER" envDefault:"ark"`
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"Model"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	var cfg AIConfig
	if err := env.Parse(&cfg); err != nil {
		return AIConfig{}, fmt.Errorf("invalid AI configuration: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch cfg.Provider {
	case ProviderArk, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", cfg.Provider)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.OpenAIModel = strings.TrimSpace(cfg.OpenAIModel)

	return cfg, nil
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	Provider     string  `env:"SPEECH_PROVIDER" envDefault:"volcengine"`
	AppID        string  `env:"SPEECH_APP_ID"`
	AccessToken  string  `env:"SPEECH_ACCESS_TOKEN"`
	APIKey       string  `env:"SPEECH_API_KEY"`
	Cluster      string  `env:"SPEECH_CLUSTER" envDefault:"volcano_tts"`
	BaseURL      string  `env:"SPEECH_BASE_URL"`
	TTSVoice     string  `env:"SPEECH_TTS_VOICE"`
	TTSSpeed     float32 `env:"SPEECH_TTS_SPEED" envDefault:"1.0"`
	TTSVolume    float32 `env:"SPEECH_TTS_VOLUME" envDefault:"1.0"`
	TTSLanguage  string  `env:"SPEECH_TTS_LANGUAGE"`
	TTSModel     string  `env:"SPEECH_TTS_MODEL" envDefault:"tts-1"`
	Timeout      int     `env:"SPEECH_TIMEOUT" envDefault:"30"`
	OpenAIAPIKey string  `env:"-"`
	OpenAIBase   string  `env:"-"`
	Enabled      bool    `env:"-"`
}

// ToModel 转换为语音服务使用的配置结构。
func (c SpeechConfig) ToModel() *speechModel.SpeechConfig {
	return &speechModel.SpeechConfig{
		Provider:      speechModel.Provider(c.Provider),
		AppID:         c.AppID,
		AccessToken:   c.AccessToken,
		APIKey:        c.APIKey,
		Cluster:       c.Cluster,
		BaseURL:       c.BaseURL,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBase,
		TTSModel:      c.TTSModel,
		TTSVoice:      c.TTSVoice,
		TTSSpeed:      c.TTSSpeed,
		TTSVolume:     c.TTSVolume,
		TTSLanguage:   c.TTSLanguage,
		Timeout:       c.Timeout,
	}
}

func loadSpeechConfig(ai AIConfig) (SpeechConfig, error) {
	var cfg SpeechConfig
	if err := env.Parse(&cfg); err != nil {
		return SpeechConfig{}, fmt.Errorf("invalid speech configuration: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.AccessToken == "" {
		cfg.AccessToken = cfg.APIKey
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}

	// OpenAI 语音与补全共用同一组凭证
	cfg.OpenAIAPIKey = ai.OpenAIAPIKey
	cfg.OpenAIBase = strings.TrimSpace(ai.OpenAIBaseURL)

	switch speechModel.Provider(cfg.Provider) {
	case speechModel.ProviderVolcengine, speechModel.ProviderVolcengineHTTP:
		// 如果没有专门的语音配置，尝试使用AI配置
		if cfg.AccessToken == "" {
			cfg.AccessToken = ai.APIKey
			cfg.APIKey = ai.APIKey
		}
		cfg.Enabled = cfg.AppID != "" && cfg.AccessToken != ""
	case speechModel.ProviderOpenAI:
		cfg.Enabled = cfg.OpenAIAPIKey != ""
	default:
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q", cfg.Provider)
	}

	return cfg, nil
}
