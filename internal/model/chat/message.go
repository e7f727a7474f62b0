package chat

import (
	"time"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/speech"
)

// Role 标识消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. It is never mutated after it is appended.
type Message struct {
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// AudioArtifact 是某条导师回复对应的合成语音。
type AudioArtifact struct {
	MessageID int    `json:"messageId"`
	Format    string `json:"format"`
	Data      []byte `json:"-"`
}

// DataURI encodes the audio for an <audio> tag. It is built on demand so the bytes are held once.
func (a AudioArtifact) DataURI() string {
	return (&speech.TTSResponse{AudioData: a.Data, Format: a.Format}).DataURI()
}
