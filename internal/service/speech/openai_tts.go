package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
)

// OpenAITTSClient 使用 OpenAI /audio/speech 接口合成语音。
type OpenAITTSClient struct {
	config *speech.SpeechConfig
	client openai.Client
}

// NewOpenAITTSClient 创建 OpenAI 语音合成客户端
func NewOpenAITTSClient(config *speech.SpeechConfig) *OpenAITTSClient {
	opts := []option.RequestOption{
		option.WithAPIKey(config.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if config.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.OpenAIBaseURL))
	}

	return &OpenAITTSClient{
		config: config,
		client: openai.NewClient(opts...),
	}
}

// openAIVoices lists the built-in voices; anything else falls back to the configured voice.
var openAIVoices = map[string]struct{}{
	"alloy": {}, "ash": {}, "coral": {}, "echo": {}, "fable": {},
	"onyx": {}, "nova": {}, "sage": {}, "shimmer": {},
}

func (c *OpenAITTSClient) resolveVoice(requested string) string {
	for _, candidate := range []string{requested, c.config.TTSVoice} {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if _, ok := openAIVoices[candidate]; ok {
			return candidate
		}
	}
	return "alloy"
}

// SynthesizeSpeech 文字转语音
func (c *OpenAITTSClient) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("TTS text is empty")
	}

	model := c.config.TTSModel
	if model == "" {
		model = "tts-1"
	}

	params := openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(model),
		Voice:          openai.AudioSpeechNewParamsVoice(c.resolveVoice(req.Voice)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if speed := pickRatio(req.Speed, c.config.TTSSpeed); speed != 1.0 {
		params.Speed = openai.Float(float64(speed))
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS audio is empty")
	}

	reqID := resp.Header.Get("X-Request-Id")
	if reqID == "" {
		reqID = uuid.NewString()
	}

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Format:    "mp3",
		RequestID: reqID,
		CreatedAt: time.Now(),
	}, nil
}
