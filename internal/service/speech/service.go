package speech

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
)

// ErrEmptyText is returned instead of calling a provider with nothing to say.
var ErrEmptyText = errors.New("nothing to synthesize: text is empty")

// Synthesizer 抽象具体的语音合成提供方。
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务核心业务逻辑
type Service struct {
	config      *speech.SpeechConfig
	synthesizer Synthesizer
}

// NewService 根据配置的提供方创建语音服务实例
func NewService(config *speech.SpeechConfig) *Service {
	var synthesizer Synthesizer
	switch config.Provider {
	case speech.ProviderVolcengineHTTP:
		synthesizer = NewVolcengineHTTPClient(config)
	case speech.ProviderOpenAI:
		synthesizer = NewOpenAITTSClient(config)
	default:
		synthesizer = NewVolcengineTTSClient(config)
	}

	return NewServiceWithSynthesizer(config, synthesizer)
}

// NewServiceWithSynthesizer wires an explicit provider.
func NewServiceWithSynthesizer(config *speech.SpeechConfig, synthesizer Synthesizer) *Service {
	return &Service{config: config, synthesizer: synthesizer}
}

// Provider 返回当前语音提供方。
func (s *Service) Provider() speech.Provider {
	if s.config.Provider == "" {
		return speech.ProviderVolcengine
	}
	return s.config.Provider
}

// Synthesize 将文本合成为 MP3。voice 为空时使用配置中的默认音色。
func (s *Service) Synthesize(ctx context.Context, text, voice string) (*speech.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speech.TTSRequest{
		Text:     text,
		Voice:    voice,
		Format:   "mp3",
		Language: s.config.TTSLanguage,
	})
}

// SynthesizeSpeech calls the provider and converts every failure, including panics, into a
// SynthesisFailure.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (resp *speech.TTSResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorf("[tts] provider panic: %v", r)
			resp, err = nil, remote.Synthesis("tts", remote.Recovered("tts", r))
		}
	}()

	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, remote.Synthesis("tts", ErrEmptyText)
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
		defer cancel()
	}

	started := time.Now()
	resp, err = s.synthesizer.SynthesizeSpeech(ctx, req)
	if err != nil {
		zap.S().Warnf("[tts] synthesis failed provider=%s: %v", s.Provider(), err)
		return nil, remote.Synthesis("tts", err)
	}

	zap.S().Infof("[tts] synthesized provider=%s chars=%d bytes=%d in %s",
		s.Provider(), len([]rune(req.Text)), len(resp.AudioData), time.Since(started).Round(time.Millisecond))
	return resp, nil
}
