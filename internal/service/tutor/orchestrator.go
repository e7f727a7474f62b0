// Package tutor drives one conversation turn: completion, reply splitting and speech.
package tutor

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/analysis/reply"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
	tutormodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
)

var (
	ErrEmptyInput    = errors.New("input is empty")
	ErrInputDisabled = errors.New("input is disabled for this session")
)

// State 表示一次对话回合所处的阶段。
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingCompletion State = "awaiting_completion"
	StateRenderingReply     State = "rendering_reply"
	StateError              State = "error"
)

// Completer produces the tutor's reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, history []chat.Message) (string, error)
	Probe(ctx context.Context) error
}

// Speaker turns text into audio.
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string) (*speechmodel.TTSResponse, error)
}

// EchoFunc is called with the user's message before the completion call is issued.
type EchoFunc func(sessionID string, msg chat.Message)

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithEcho registers a callback that shows the user's message immediately.
func WithEcho(fn EchoFunc) Option {
	return func(o *Orchestrator) {
		o.echo = fn
	}
}

// WithVoice overrides the profile's voice selector.
func WithVoice(voice string) Option {
	return func(o *Orchestrator) {
		o.voice = voice
	}
}

// Orchestrator 串联补全、拆分与语音合成。它本身无状态，会话状态全部保存在 chat.Session 中。
type Orchestrator struct {
	completer Completer
	speaker   Speaker
	profile   tutormodel.Profile
	voice     string
	echo      EchoFunc
}

// NewOrchestrator wires the collaborators. speaker may be nil, in which case replies are
// text only.
func NewOrchestrator(completer Completer, speaker Speaker, profile tutormodel.Profile, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer: completer,
		speaker:   speaker,
		profile:   profile,
		voice:     profile.VoiceID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Profile returns the tutor profile used for every turn.
func (o *Orchestrator) Profile() tutormodel.Profile {
	return o.profile
}

// TurnResult describes what one submission did to the session.
type TurnResult struct {
	User        chat.Message        `json:"user"`
	Assistant   *chat.Message       `json:"assistant,omitempty"`
	Sections    reply.Sections      `json:"sections"`
	Speakable   string              `json:"speakable,omitempty"`
	Audio       *chat.AudioArtifact `json:"audio,omitempty"`
	AudioError  string              `json:"audioError,omitempty"`
	Failure     *remote.Failure     `json:"failure,omitempty"`
	Transitions []State             `json:"transitions"`
}

// Probe issues one trivial completion. A failure disables input for the session and is
// returned as a *remote.Failure.
func (o *Orchestrator) Probe(ctx context.Context, sess *chat.Session) error {
	failure := o.probe(ctx)
	if failure != nil {
		sess.InputDisabled = true
		sess.ProbeError = failure.UserMessage()
		zap.S().Errorf("[tutor] probe failed for session %s: %v", sess.ID, failure)
		return failure
	}

	sess.InputDisabled = false
	sess.ProbeError = ""
	zap.S().Infof("[tutor] probe ok for session %s", sess.ID)
	return nil
}

func (o *Orchestrator) probe(ctx context.Context) (failure *remote.Failure) {
	defer func() {
		if r := recover(); r != nil {
			failure = remote.Recovered("probe", r)
		}
	}()

	if err := o.completer.Probe(ctx); err != nil {
		return remote.Classify("probe", err)
	}
	return nil
}

// Submit runs one turn for the given input. Completion failures are returned both as the
// error and in TurnResult.Failure; the user's message stays in history either way.
func (o *Orchestrator) Submit(ctx context.Context, sess *chat.Session, input string) (TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TurnResult{}, ErrEmptyInput
	}
	if sess.InputDisabled {
		return TurnResult{}, ErrInputDisabled
	}

	result := TurnResult{Transitions: []State{StateIdle}}
	enter := func(s State) {
		result.Transitions = append(result.Transitions, s)
	}

	result.User = sess.Append(chat.RoleUser, input)
	enter(StateAwaitingCompletion)
	if o.echo != nil {
		o.echo(sess.ID, result.User)
	}

	started := time.Now()
	text, failure := o.complete(ctx, sess.Transcript())
	if failure != nil {
		enter(StateError)
		enter(StateIdle)
		result.Failure = failure
		zap.S().Warnf("[tutor] completion failed for session %s: %v", sess.ID, failure)
		return result, failure
	}
	zap.S().Infof("[tutor] session %s reply received in %s", sess.ID, time.Since(started).Round(time.Millisecond))

	assistant := sess.Append(chat.RoleAssistant, text)
	result.Assistant = &assistant
	enter(StateRenderingReply)

	result.Sections = reply.Split(text)
	result.Speakable = reply.ExtractChinese(result.Sections.Main)
	o.render(ctx, sess, assistant.ID, &result)

	enter(StateIdle)
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, history []chat.Message) (text string, failure *remote.Failure) {
	defer func() {
		if r := recover(); r != nil {
			text, failure = "", remote.Recovered("completion", r)
		}
	}()

	text, err := o.completer.Complete(ctx, history)
	if err != nil {
		return "", remote.Classify("completion", err)
	}
	return text, nil
}

// render synthesizes the speakable part of a reply and stores the outcome on the session.
func (o *Orchestrator) render(ctx context.Context, sess *chat.Session, messageID int, result *TurnResult) {
	if result.Speakable == "" || o.speaker == nil {
		return
	}

	audio, err := o.synthesize(ctx, result.Speakable)
	if err != nil {
		failure := remote.Synthesis("tts", err)
		result.AudioError = failure.UserMessage()
		sess.StoreAudioError(messageID, result.AudioError)
		zap.S().Warnf("[tutor] synthesis failed for message %d: %v", messageID, err)
		return
	}

	artifact := chat.AudioArtifact{
		MessageID: messageID,
		Format:    audio.Format,
		Data:      audio.AudioData,
	}
	sess.StoreArtifact(artifact)
	result.Audio = &artifact
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) (resp *speechmodel.TTSResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, remote.Recovered("tts", r)
		}
	}()
	return o.speaker.Synthesize(ctx, text, o.voice)
}
