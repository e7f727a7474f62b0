// Package bootstrap assembles the services shared by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/config"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	tutormodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/ai"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/speech"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/tutor"
)

// App holds the wired services. Speech is nil when no speech provider is configured.
type App struct {
	Config       *config.Config
	Profile      tutormodel.Profile
	Speech       *speech.Service
	Orchestrator *tutor.Orchestrator
}

// New wires completion, speech and turn orchestration from cfg. A completion backend that
// cannot be built does not abort startup: every probe then fails with a credential error
// so sessions open with input disabled.
func New(ctx context.Context, cfg *config.Config, opts ...tutor.Option) *App {
	profile := tutormodel.Default()
	if voice := cfg.Speech.TTSVoice; voice != "" {
		profile.VoiceID = voice
	}
	if cfg.Speech.TTSLanguage == "" {
		cfg.Speech.TTSLanguage = profile.SpeechLocale
	}

	var completer tutor.Completer
	aiService, err := ai.NewService(ctx, cfg.AI, profile)
	if err != nil {
		zap.S().Warnf("[bootstrap] AI service unavailable, sessions will open read-only: %v", err)
		completer = unavailable{failure: remote.New(remote.CredentialInvalid, "completion",
			fmt.Errorf("%w: %v", ErrNoCompletionBackend, err))}
	} else {
		zap.S().Infof("[bootstrap] AI service initialized provider=%s", aiService.Provider())
		completer = aiService
	}

	app := &App{Config: cfg, Profile: profile}

	var speaker tutor.Speaker
	if cfg.Speech.Enabled {
		app.Speech = speech.NewService(cfg.Speech.ToModel())
		speaker = app.Speech
		zap.S().Infof("[bootstrap] speech service initialized provider=%s", app.Speech.Provider())
	} else {
		zap.S().Warn("[bootstrap] 语音服务凭证未配置，回复将只包含文字")
	}

	app.Orchestrator = tutor.NewOrchestrator(completer, speaker, profile, opts...)
	return app
}

// ErrNoCompletionBackend is wrapped by the failure reported when no backend could be built.
var ErrNoCompletionBackend = errors.New("completion backend is not configured")

// unavailable stands in for a completion backend that failed to initialise.
type unavailable struct {
	failure *remote.Failure
}

func (u unavailable) Complete(context.Context, []chat.Message) (string, error) {
	return "", u.failure
}

func (u unavailable) Probe(context.Context) error {
	return u.failure
}

// Loader builds the App on demand, so commands that fail argument validation never read
// configuration or touch the network.
type Loader func(ctx context.Context, opts ...tutor.Option) (*App, error)

// FromEnv loads .env and the process environment, then wires the App.
func FromEnv(ctx context.Context, opts ...tutor.Option) (*App, error) {
	if err := godotenv.Load(); err != nil {
		zap.S().Debugf("[bootstrap] no .env loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(ctx, cfg, opts...), nil
}
