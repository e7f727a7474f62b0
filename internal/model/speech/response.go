package speech

import (
	"encoding/base64"
	"time"
)

// TTSResponse 语音合成响应
type TTSResponse struct {
	SessionID string    `json:"sessionId"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // milliseconds
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MimeType 返回音频对应的 MIME 类型。
func (r *TTSResponse) MimeType() string {
	switch r.Format {
	case "wav":
		return "audio/wav"
	case "ogg_opus", "opus":
		return "audio/ogg"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/mp3"
	}
}

// DataURI encodes the audio so it can be embedded directly in an <audio> tag.
func (r *TTSResponse) DataURI() string {
	return "data:" + r.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(r.AudioData)
}
