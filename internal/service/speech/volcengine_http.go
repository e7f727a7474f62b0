package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
)

const defaultVolcengineHTTPURL = "https://openspeech.bytedance.com"

// VolcengineHTTPClient 调用火山引擎 v1 HTTP 合成接口，一次请求返回完整音频。
type VolcengineHTTPClient struct {
	config *speech.SpeechConfig
	client *resty.Client
}

// NewVolcengineHTTPClient 创建 HTTP 合成客户端
func NewVolcengineHTTPClient(config *speech.SpeechConfig) *VolcengineHTTPClient {
	baseURL := defaultVolcengineHTTPURL
	if base := strings.TrimSpace(config.BaseURL); strings.HasPrefix(base, "http") {
		baseURL = strings.TrimRight(base, "/")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &VolcengineHTTPClient{
		config: config,
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type volcengineHTTPRequest struct {
	App struct {
		AppID   string `json:"appid"`
		Token   string `json:"token"`
		Cluster string `json:"cluster"`
	} `json:"app"`
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	Audio struct {
		VoiceType   string  `json:"voice_type"`
		Encoding    string  `json:"encoding"`
		SpeedRatio  float32 `json:"speed_ratio"`
		VolumeRatio float32 `json:"volume_ratio"`
		Language    string  `json:"language,omitempty"`
	} `json:"audio"`
	Request struct {
		ReqID     string `json:"reqid"`
		Text      string `json:"text"`
		TextType  string `json:"text_type"`
		Operation string `json:"operation"`
	} `json:"request"`
}

// httpStatusError carries the status of a non-2xx reply so failures can be classified.
type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("TTS HTTP status %d: %s", e.code, e.body)
}

func (e *httpStatusError) StatusCode() int {
	return e.code
}

// SynthesizeSpeech 文字转语音
func (c *VolcengineHTTPClient) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("TTS text is empty")
	}

	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	body := &volcengineHTTPRequest{}
	body.App.AppID = appID
	body.App.Token = token
	body.App.Cluster = c.config.Cluster
	if body.App.Cluster == "" {
		body.App.Cluster = "volcano_tts"
	}
	body.User.UID = req.SessionID
	if body.User.UID == "" {
		body.User.UID = uuid.NewString()
	}
	body.Audio.VoiceType = resolveVolcengineSpeakers(req.Voice, c.config.TTSVoice)[0]
	body.Audio.Encoding = normalizeFormat(req.Format)
	body.Audio.SpeedRatio = pickRatio(req.Speed, c.config.TTSSpeed)
	body.Audio.VolumeRatio = pickRatio(req.Volume, c.config.TTSVolume)
	body.Audio.Language = req.Language
	body.Request.ReqID = uuid.NewString()
	body.Request.Text = req.Text
	body.Request.TextType = "plain"
	body.Request.Operation = "query"

	var result ttsServerMessage
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer;"+token).
		SetBody(body).
		SetResult(&result).
		Post("/api/v1/tts")
	if err != nil {
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}
	if !res.IsSuccess() {
		return nil, &httpStatusError{code: res.StatusCode(), body: res.String()}
	}
	if result.Code != 3000 {
		return nil, fmt.Errorf("TTS API error %d: %s", result.Code, result.Message)
	}

	audio, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS audio is empty")
	}

	duration, _ := parseDuration(result.Addition.Duration)
	reqID := result.ReqID
	if reqID == "" {
		reqID = body.Request.ReqID
	}

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Duration:  duration,
		Format:    body.Audio.Encoding,
		RequestID: reqID,
		CreatedAt: time.Now(),
	}, nil
}
