package chat

import "time"

// Session owns the in-memory state of one browser session: the transcript and the audio
// produced for it. Nothing here outlives the process.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	History     []Message             `json:"history"`
	Artifacts   map[int]AudioArtifact `json:"-"`
	AudioErrors map[int]string        `json:"-"`

	// InputDisabled is set when the startup probe fails.
	InputDisabled bool   `json:"inputDisabled"`
	ProbeError    string `json:"probeError,omitempty"`
}

// NewSession returns an empty session.
func NewSession(id string) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		History:     make([]Message, 0, 16),
		Artifacts:   make(map[int]AudioArtifact),
		AudioErrors: make(map[int]string),
	}
}

// Append adds a message. The id is the history length at append time, so ids are strictly
// increasing and never reused.
func (s *Session) Append(role Role, content string) Message {
	msg := Message{
		ID:        len(s.History),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.History = append(s.History, msg)
	return msg
}

// StoreArtifact records audio for an assistant message. An existing artifact is kept.
func (s *Session) StoreArtifact(artifact AudioArtifact) bool {
	if _, exists := s.Artifacts[artifact.MessageID]; exists {
		return false
	}
	s.Artifacts[artifact.MessageID] = artifact
	delete(s.AudioErrors, artifact.MessageID)
	return true
}

// StoreAudioError records why audio for a message could not be produced.
func (s *Session) StoreAudioError(messageID int, message string) {
	if _, exists := s.Artifacts[messageID]; exists {
		return
	}
	s.AudioErrors[messageID] = message
}

// Transcript returns a copy of the history.
func (s *Session) Transcript() []Message {
	copied := make([]Message, len(s.History))
	copy(copied, s.History)
	return copied
}

// Clone returns a deep copy that can be read without holding the session's turn lock.
func (s *Session) Clone() Session {
	c := *s
	c.History = s.Transcript()
	c.Artifacts = make(map[int]AudioArtifact, len(s.Artifacts))
	for id, a := range s.Artifacts {
		c.Artifacts[id] = a
	}
	c.AudioErrors = make(map[int]string, len(s.AudioErrors))
	for id, msg := range s.AudioErrors {
		c.AudioErrors[id] = msg
	}
	return c
}
