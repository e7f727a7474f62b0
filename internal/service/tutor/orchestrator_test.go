package tutor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
	tutormodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
)

const sampleReply = "亲爱的！今天我们学习中文！(Darling! Today we are learning Chinese!)\n" +
	"你说中文说得很好！(Your Chinese is very good!) 🌟\n" +
	"---\n" +
	"Qīn'ài de! Jīntiān wǒmen xuéxí zhōngwén!\n" +
	"Nǐ shuō zhōngwén shuō de hěn hǎo!"

type fakeCompleter struct {
	replies  []string
	err      error
	probeErr error
	panic    any
	seen     [][]chat.Message
}

func (f *fakeCompleter) Complete(_ context.Context, history []chat.Message) (string, error) {
	f.seen = append(f.seen, history)
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeCompleter) Probe(context.Context) error {
	return f.probeErr
}

type fakeSpeaker struct {
	texts  []string
	voices []string
	err    error
	panic  any
}

func (f *fakeSpeaker) Synthesize(_ context.Context, text, voice string) (*speechmodel.TTSResponse, error) {
	f.texts = append(f.texts, text)
	f.voices = append(f.voices, voice)
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{AudioData: []byte("mp3"), Format: "mp3"}, nil
}

func newTestOrchestrator(c *fakeCompleter, s *fakeSpeaker, opts ...Option) *Orchestrator {
	if s == nil {
		return NewOrchestrator(c, nil, tutormodel.Default(), opts...)
	}
	return NewOrchestrator(c, s, tutormodel.Default(), opts...)
}

func TestSubmitFullTurn(t *testing.T) {
	completer := &fakeCompleter{replies: []string{sampleReply}}
	speaker := &fakeSpeaker{}
	sess := chat.NewSession("s1")

	var echoed []chat.Message
	orch := newTestOrchestrator(completer, speaker, WithEcho(func(id string, msg chat.Message) {
		assert.Equal(t, "s1", id)
		assert.Empty(t, completer.seen, "echo must happen before the completion call")
		echoed = append(echoed, msg)
	}))

	result, err := orch.Submit(context.Background(), sess, "  你好  ")
	require.NoError(t, err)

	assert.Equal(t, []State{StateIdle, StateAwaitingCompletion, StateRenderingReply, StateIdle}, result.Transitions)
	require.Len(t, echoed, 1)
	assert.Equal(t, "你好", echoed[0].Content)

	require.Len(t, sess.History, 2)
	assert.Equal(t, chat.Message{ID: 0, Role: chat.RoleUser, Content: "你好", CreatedAt: sess.History[0].CreatedAt}, sess.History[0])
	assert.Equal(t, 1, sess.History[1].ID)
	assert.Equal(t, chat.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, sampleReply, sess.History[1].Content)

	require.Len(t, completer.seen, 1)
	assert.Len(t, completer.seen[0], 1)

	assert.Equal(t, "Qīn'ài de! Jīntiān wǒmen xuéxí zhōngwén!\nNǐ shuō zhōngwén shuō de hěn hǎo!", result.Sections.Pinyin)
	assert.Equal(t, "亲爱的！今天我们学习中文！ 你说中文说得很好！", result.Speakable)
	assert.Equal(t, []string{"亲爱的！今天我们学习中文！ 你说中文说得很好！"}, speaker.texts)
	assert.Equal(t, []string{"tutor-default"}, speaker.voices)

	require.NotNil(t, result.Audio)
	assert.Equal(t, 1, result.Audio.MessageID)
	assert.Equal(t, "data:audio/mp3;base64,bXAz", result.Audio.DataURI())
	assert.Equal(t, *result.Audio, sess.Artifacts[1])
	assert.Empty(t, result.AudioError)
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	completer := &fakeCompleter{replies: []string{sampleReply}}
	sess := chat.NewSession("s1")
	orch := newTestOrchestrator(completer, &fakeSpeaker{})

	_, err := orch.Submit(context.Background(), sess, " \n\t ")

	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, sess.History)
	assert.Empty(t, completer.seen)
}

func TestSubmitRejectsDisabledSession(t *testing.T) {
	completer := &fakeCompleter{replies: []string{sampleReply}}
	sess := chat.NewSession("s1")
	sess.InputDisabled = true
	orch := newTestOrchestrator(completer, &fakeSpeaker{})

	_, err := orch.Submit(context.Background(), sess, "你好")

	assert.ErrorIs(t, err, ErrInputDisabled)
	assert.Empty(t, sess.History)
}

func TestSubmitCompletionFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind remote.Kind
	}{
		{name: "connectivity", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, kind: remote.ConnectivityFailure},
		{name: "credential", err: remote.New(remote.CredentialInvalid, "completion", errors.New("401")), kind: remote.CredentialInvalid},
		{name: "unclassified", err: errors.New("model overloaded"), kind: remote.UnclassifiedFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			speaker := &fakeSpeaker{}
			sess := chat.NewSession("s1")
			orch := newTestOrchestrator(&fakeCompleter{err: tc.err}, speaker)

			result, err := orch.Submit(context.Background(), sess, "你好")

			var failure *remote.Failure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tc.kind, failure.Kind)
			assert.Same(t, failure, result.Failure)
			assert.Equal(t, []State{StateIdle, StateAwaitingCompletion, StateError, StateIdle}, result.Transitions)

			require.Len(t, sess.History, 1)
			assert.Equal(t, chat.RoleUser, sess.History[0].Role)
			assert.Nil(t, result.Assistant)
			assert.Empty(t, speaker.texts)
			assert.False(t, sess.InputDisabled, "mid-session failures stay recoverable")
		})
	}
}

func TestSubmitRecoversCompleterPanic(t *testing.T) {
	sess := chat.NewSession("s1")
	orch := newTestOrchestrator(&fakeCompleter{panic: "nil map"}, &fakeSpeaker{})

	result, err := orch.Submit(context.Background(), sess, "你好")

	require.Error(t, err)
	require.NotNil(t, result.Failure)
	assert.Equal(t, remote.UnclassifiedFailure, result.Failure.Kind)
	assert.Len(t, sess.History, 1)
}

func TestSubmitSynthesisFailureKeepsText(t *testing.T) {
	speaker := &fakeSpeaker{err: remote.Synthesis("tts", errors.New("quota exceeded"))}
	sess := chat.NewSession("s1")
	orch := newTestOrchestrator(&fakeCompleter{replies: []string{sampleReply}}, speaker)

	result, err := orch.Submit(context.Background(), sess, "你好")
	require.NoError(t, err)

	assert.Equal(t, []State{StateIdle, StateAwaitingCompletion, StateRenderingReply, StateIdle}, result.Transitions)
	assert.Nil(t, result.Audio)
	assert.Contains(t, result.AudioError, "quota exceeded")
	assert.Equal(t, result.AudioError, sess.AudioErrors[1])
	assert.Empty(t, sess.Artifacts)
	assert.Equal(t, sampleReply, sess.History[1].Content)
}

func TestSubmitSynthesisPanicIsContained(t *testing.T) {
	sess := chat.NewSession("s1")
	orch := newTestOrchestrator(&fakeCompleter{replies: []string{sampleReply}}, &fakeSpeaker{panic: "boom"})

	result, err := orch.Submit(context.Background(), sess, "你好")
	require.NoError(t, err)

	assert.NotEmpty(t, result.AudioError)
	assert.Equal(t, sampleReply, sess.History[1].Content)
}

func TestSubmitSkipsSynthesisWithoutChinese(t *testing.T) {
	replies := []string{
		"(Only a translation)\n---\npinyin",
		"   \n---\nnǐ hǎo",
	}

	for _, text := range replies {
		speaker := &fakeSpeaker{}
		sess := chat.NewSession("s1")
		orch := newTestOrchestrator(&fakeCompleter{replies: []string{text}}, speaker)

		result, err := orch.Submit(context.Background(), sess, "hi")
		require.NoError(t, err)

		assert.Empty(t, speaker.texts, "reply %q", text)
		assert.Nil(t, result.Audio)
		assert.Empty(t, result.AudioError)
		assert.Len(t, sess.History, 2)
	}
}

func TestSubmitWithoutSpeaker(t *testing.T) {
	sess := chat.NewSession("s1")
	orch := newTestOrchestrator(&fakeCompleter{replies: []string{sampleReply}}, nil)

	result, err := orch.Submit(context.Background(), sess, "你好")
	require.NoError(t, err)
	assert.Nil(t, result.Audio)
	assert.NotEmpty(t, result.Speakable)
}

func TestConsecutiveSubmissionsAssignIncreasingIDs(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"一(one)", "二(two)", "三(three)"}}
	sess := chat.NewSession("s1")
	orch := newTestOrchestrator(completer, &fakeSpeaker{})

	for i := 0; i < 3; i++ {
		result, err := orch.Submit(context.Background(), sess, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
		assert.Equal(t, 2*i, result.User.ID)
		assert.Equal(t, 2*i+1, result.Assistant.ID)
		assert.Len(t, completer.seen[i], 2*i+1, "completion sees the full history")
	}

	for i, msg := range sess.History {
		assert.Equal(t, i, msg.ID)
	}
	assert.Len(t, sess.Artifacts, 3)
}

func TestWithVoiceOverridesProfile(t *testing.T) {
	speaker := &fakeSpeaker{}
	orch := newTestOrchestrator(&fakeCompleter{replies: []string{sampleReply}}, speaker, WithVoice("tutor-male"))

	_, err := orch.Submit(context.Background(), chat.NewSession("s1"), "你好")
	require.NoError(t, err)
	assert.Equal(t, []string{"tutor-male"}, speaker.voices)
}

func TestProbe(t *testing.T) {
	t.Run("success enables input", func(t *testing.T) {
		sess := chat.NewSession("s1")
		sess.InputDisabled = true
		orch := newTestOrchestrator(&fakeCompleter{}, nil)

		require.NoError(t, orch.Probe(context.Background(), sess))
		assert.False(t, sess.InputDisabled)
		assert.Empty(t, sess.ProbeError)
	})

	t.Run("failure disables input", func(t *testing.T) {
		sess := chat.NewSession("s1")
		probeErr := remote.New(remote.CredentialInvalid, "probe", errors.New("401 Unauthorized"))
		orch := newTestOrchestrator(&fakeCompleter{probeErr: probeErr}, nil)

		err := orch.Probe(context.Background(), sess)

		var failure *remote.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, remote.CredentialInvalid, failure.Kind)
		assert.True(t, sess.InputDisabled)
		assert.Equal(t, failure.UserMessage(), sess.ProbeError)

		_, err = orch.Submit(context.Background(), sess, "你好")
		assert.ErrorIs(t, err, ErrInputDisabled)
	})
}
