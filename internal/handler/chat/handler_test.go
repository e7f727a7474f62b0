package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
	tutormodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/remote"
	chatservice "github.com/zhouzirui/hanyu-tutor/backend/internal/service/chat"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/tutor"
)

const tutorReply = "你好！(Hello!)\n---\nNǐ hǎo!"

type stubCompleter struct {
	reply    string
	err      error
	probeErr error
}

func (s *stubCompleter) Complete(context.Context, []chat.Message) (string, error) {
	return s.reply, s.err
}

func (s *stubCompleter) Probe(context.Context) error {
	return s.probeErr
}

type stubSpeaker struct{}

func (stubSpeaker) Synthesize(context.Context, string, string) (*speechmodel.TTSResponse, error) {
	return &speechmodel.TTSResponse{AudioData: []byte("mp3"), Format: "mp3"}, nil
}

func setupRouter(completer *stubCompleter) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService()
	orchestrator := tutor.NewOrchestrator(completer, stubSpeaker{}, tutormodel.Default())
	handler := New(chatSvc, orchestrator)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) sessionView {
	t.Helper()
	resp := doJSON(t, r, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var view sessionView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	return view
}

func TestCreateSessionRunsProbe(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: tutorReply})

	view := createSession(t, r)

	assert.NotEmpty(t, view.ID)
	assert.False(t, view.InputDisabled)
	assert.Empty(t, view.ProbeError)
	assert.Equal(t, tutormodel.Default().OpeningLine, view.Tutor.OpeningLine)
	assert.Empty(t, view.Messages)
}

func TestCreateSessionProbeFailureDisablesInput(t *testing.T) {
	completer := &stubCompleter{probeErr: remote.New(remote.CredentialInvalid, "probe", errors.New("401"))}
	r, _ := setupRouter(completer)

	view := createSession(t, r)

	assert.True(t, view.InputDisabled)
	assert.NotEmpty(t, view.ProbeError)

	resp := doJSON(t, r, http.MethodPost, "/session/"+view.ID+"/messages", map[string]string{"content": "你好"})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestSubmitMessage(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: tutorReply})
	session := createSession(t, r)

	resp := doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "你好"})
	require.Equal(t, http.StatusOK, resp.Code)

	var turn turnView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &turn))
	assert.Equal(t, 0, turn.User.ID)
	require.NotNil(t, turn.Assistant)
	assert.Equal(t, 1, turn.Assistant.ID)
	assert.Equal(t, "你好！(Hello!)", turn.Assistant.Main)
	assert.Equal(t, "Nǐ hǎo!", turn.Assistant.Pinyin)
	assert.Equal(t, "data:audio/mp3;base64,bXAz", turn.Assistant.Audio)
	assert.Nil(t, turn.Failure)

	get := doJSON(t, r, http.MethodGet, "/session/"+session.ID, nil)
	require.Equal(t, http.StatusOK, get.Code)
	var view sessionView
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &view))
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "data:audio/mp3;base64,bXAz", view.Messages[1].Audio)
}

func TestSubmitValidation(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: tutorReply})
	session := createSession(t, r)

	resp := doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, r, http.MethodPost, "/session/missing/messages", map[string]string{"content": "你好"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doJSON(t, r, http.MethodGet, "/session/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSubmitCompletionFailure(t *testing.T) {
	completer := &stubCompleter{reply: tutorReply}
	r, _ := setupRouter(completer)
	session := createSession(t, r)

	completer.err = remote.New(remote.ConnectivityFailure, "completion", errors.New("dial tcp: connection refused"))
	resp := doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "你好"})
	require.Equal(t, http.StatusBadGateway, resp.Code)

	var turn turnView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &turn))
	require.NotNil(t, turn.Failure)
	assert.Equal(t, remote.ConnectivityFailure, turn.Failure.Kind)
	assert.Nil(t, turn.Assistant)

	// the session stays usable after a mid-session failure
	completer.err = nil
	resp = doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "再试一次"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &turn))
	assert.Equal(t, 1, turn.User.ID)
}

func TestSubmitWhileTurnInProgress(t *testing.T) {
	r, chatSvc := setupRouter(&stubCompleter{reply: tutorReply})
	session := createSession(t, r)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- chatSvc.RunTurn(context.Background(), session.ID, func(*chat.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	resp := doJSON(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "你好"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	close(release)
	require.NoError(t, <-done)
}

func TestDeleteSession(t *testing.T) {
	r, chatSvc := setupRouter(&stubCompleter{reply: tutorReply})
	session := createSession(t, r)

	resp := doJSON(t, r, http.MethodDelete, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Zero(t, chatSvc.Count())
}
