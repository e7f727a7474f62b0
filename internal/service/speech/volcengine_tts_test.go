package speech

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
)

func TestResolveTTSResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "zh_female_vv_uranus_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "legacy 1.0 voice", voice: "zh_male_organizer", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		got := resolveTTSResourceCandidates(tt.voice)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveTTSResourceCandidates(%q) = %v, want %v", tt.name, tt.voice, got, tt.want)
		}
	}
}

func TestResolveVolcengineSpeakers(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{
			name:     "request and fallback",
			request:  "zh_male_custom",
			fallback: "zh_female_vv_uranus_bigtts",
			want:     []string{"zh_male_custom", "zh_female_vv_uranus_bigtts"},
		},
		{
			name:     "request empty",
			request:  "",
			fallback: "zh_male_M392_conversation_wvae_bigtts",
			want:     []string{"zh_male_M392_conversation_wvae_bigtts"},
		},
		{
			name:     "duplicates ignored",
			request:  "ZH_voice",
			fallback: "zh_voice",
			want:     []string{"ZH_voice"},
		},
		{
			name:     "tutor alias",
			request:  "tutor-default",
			fallback: "",
			want:     []string{"zh_female_vv_uranus_bigtts"},
		},
		{
			name:     "nothing configured",
			request:  "default",
			fallback: "",
			want:     []string{"zh_female_vv_uranus_bigtts"},
		},
	}

	for _, tt := range tests {
		got := resolveVolcengineSpeakers(tt.request, tt.fallback)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveVolcengineSpeakers(%q, %q) = %v, want %v", tt.name, tt.request, tt.fallback, got, tt.want)
		}
	}
}

func TestIsResourceMismatchError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "unrelated error", err: fmt.Errorf("some other error"), want: false},
		{
			name: "mismatch substring",
			err:  fmt.Errorf("TTS error: {\"error\":\"resource ID is mismatched with speaker related resource\"}"),
			want: true,
		},
	}

	for _, tc := range cases {
		if got := isResourceMismatchError(tc.err); got != tc.want {
			t.Errorf("%s: isResourceMismatchError(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestFrameServerResponseWithEvent(t *testing.T) {
	original := &frame{
		msgType:       fullServerResponse,
		flags:         withEvent,
		serialization: serializationJSON,
		compression:   compressionGzip,
		event:         eventSessionFinished,
		sessionID:     "session-1",
		payload:       gzipBytes(t, []byte(`{"code":0}`)),
	}

	decoded, err := unmarshalFrame(original.marshal())
	require.NoError(t, err)

	assert.Equal(t, fullServerResponse, decoded.msgType)
	assert.Equal(t, eventSessionFinished, decoded.event)
	assert.Equal(t, "session-1", decoded.sessionID)
	body, err := decoded.body()
	require.NoError(t, err)
	assert.Equal(t, `{"code":0}`, string(body))
}

func TestFrameErrorAndSequence(t *testing.T) {
	errFrame := &frame{msgType: errorMessage, errorCode: 45000001, payload: []byte("bad")}
	decoded, err := unmarshalFrame(errFrame.marshal())
	require.NoError(t, err)
	assert.Equal(t, uint32(45000001), decoded.errorCode)
	assert.Equal(t, []byte("bad"), decoded.payload)

	last := &frame{msgType: audioOnlyServerResponse, flags: negativeSequence, sequence: -3, payload: []byte("x")}
	decoded, err = unmarshalFrame(last.marshal())
	require.NoError(t, err)
	assert.True(t, decoded.isLast())
	assert.Equal(t, int32(-3), decoded.sequence)
}

func TestUnmarshalFrameRejectsGarbage(t *testing.T) {
	_, err := unmarshalFrame([]byte{0x11})
	assert.Error(t, err)

	_, err = unmarshalFrame([]byte{0x21, 0x10, 0x10, 0x00, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestUnmarshalFrameRejectsOversizedLengths(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{
			name: "payload larger than frame",
			data: []byte{0x11, 0x90, 0x10, 0x00, 0x40, 0, 0, 0, 'x', 'y'},
		},
		{
			name: "payload size at uint32 max",
			data: []byte{0x11, 0xB0, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 'x'},
		},
		{
			name: "session id larger than frame",
			data: []byte{0x11, 0x94, 0x10, 0x00, 0, 0, 0, 0x98, 0xFF, 0xFF, 0xFF, 0xFF, 's'},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := unmarshalFrame(tc.data)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.Contains(t, err.Error(), "exceeds remaining")
		})
	}
}

// fakeVolcengineServer speaks just enough of the unidirectional TTS protocol.
type fakeVolcengineServer struct {
	mu        sync.Mutex
	resources []string
	requests  []volcengineTTSRequest
	mismatch  string
}

func (f *fakeVolcengineServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-App-Key") != "app" || r.Header.Get("X-Api-Access-Key") != "token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		resource := r.Header.Get("X-Api-Resource-Id")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read: %v", err)
			return
		}
		req, err := unmarshalFrame(data)
		if err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		var payload volcengineTTSRequest
		if err := json.Unmarshal(req.payload, &payload); err != nil {
			t.Errorf("json: %v", err)
			return
		}

		f.mu.Lock()
		f.resources = append(f.resources, resource)
		f.requests = append(f.requests, payload)
		f.mu.Unlock()

		if resource == f.mismatch {
			msg := &frame{msgType: errorMessage, errorCode: 45000001,
				payload: []byte(`{"error":"resource ID is mismatched with speaker related resource"}`)}
			_ = conn.WriteMessage(websocket.BinaryMessage, msg.marshal())
			return
		}

		for i, chunk := range []string{"ID3-", "audio"} {
			msg := &frame{msgType: audioOnlyServerResponse, flags: positiveSequence, sequence: int32(i + 1),
				serialization: serializationNone, payload: []byte(chunk)}
			_ = conn.WriteMessage(websocket.BinaryMessage, msg.marshal())
		}
		final := &frame{
			msgType:       fullServerResponse,
			flags:         withEvent,
			serialization: serializationJSON,
			compression:   compressionGzip,
			event:         eventSessionFinished,
			sessionID:     "sess",
			payload:       gzipBytes(t, []byte(`{"reqid":"req-1","code":0,"addition":{"duration":"1200"}}`)),
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, final.marshal())
	}
}

func TestVolcengineTTSClientFallsBackOnResourceMismatch(t *testing.T) {
	fake := &fakeVolcengineServer{mismatch: "seed-tts-2.0"}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := NewVolcengineTTSClient(&speechmodel.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		BaseURL:     "ws" + strings.TrimPrefix(server.URL, "http"),
		TTSLanguage: "zh-CN",
	})

	resp, err := client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{
		SessionID: "s1",
		Text:      "你好",
		Voice:     "tutor-default",
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3-audio"), resp.AudioData)
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, int64(1200), resp.Duration)

	assert.Equal(t, []string{"seed-tts-2.0", "volc.service_type.10029"}, fake.resources)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "你好", fake.requests[1].ReqParams.Text)
	assert.Equal(t, "zh_female_vv_uranus_bigtts", fake.requests[1].ReqParams.Speaker)
	assert.Equal(t, "s1", fake.requests[1].User.UID)
	assert.Equal(t, "zh-CN", fake.requests[1].ReqParams.Language)
}

func TestVolcengineTTSClientBadCredentials(t *testing.T) {
	fake := &fakeVolcengineServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := NewVolcengineTTSClient(&speechmodel.SpeechConfig{
		AppID:       "app",
		AccessToken: "wrong",
		BaseURL:     "ws" + strings.TrimPrefix(server.URL, "http"),
	})

	_, err := client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "你好"})
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestVolcengineTTSClientMissingCredentials(t *testing.T) {
	client := NewVolcengineTTSClient(&speechmodel.SpeechConfig{})

	_, err := client.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "你好"})
	assert.Error(t, err)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}
