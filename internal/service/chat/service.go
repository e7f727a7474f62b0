package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnInProgress  = errors.New("a turn is already in progress for this session")
)

type entry struct {
	mu      sync.Mutex
	session *chat.Session
}

// Service keeps every session in memory. Each session has its own lock; a turn holds it
// for its whole duration so overlapping submissions are rejected instead of interleaved.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*entry),
	}
}

// CreateSession provisions an anonymous session.
func (s *Service) CreateSession(_ context.Context) chat.Session {
	session := chat.NewSession(uuid.NewString())

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session}
	s.mu.Unlock()

	zap.S().Infof("[session] created %s", session.ID)
	return session.Clone()
}

// GetSession returns a snapshot of the session. It waits for an in-flight turn to finish.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// RunTurn gives fn exclusive access to the session. It fails fast with ErrTurnInProgress
// when another turn holds the session.
func (s *Service) RunTurn(_ context.Context, sessionID string, fn func(*chat.Session) error) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	if !e.mu.TryLock() {
		return ErrTurnInProgress
	}
	defer e.mu.Unlock()

	return fn(e.session)
}

// DeleteSession drops a session and everything stored for it.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	zap.S().Infof("[session] deleted %s", sessionID)
	return nil
}

// Count reports how many sessions are live.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
