package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and local development.
type Memory struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	turns     map[string][]Turn
	documents map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]Session),
		turns:     make(map[string][]Turn),
		documents: make(map[string][]byte),
	}
}

func (m *Memory) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *Memory) Finalize(_ context.Context, sessionID string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	m.documents[sessionID] = cp
	s.Status = SessionFinalized
	m.sessions[sessionID] = s
	return nil
}

func (m *Memory) AppendTurn(_ context.Context, sessionID string, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	m.turns[sessionID] = append(m.turns[sessionID], t)
	return nil
}

func (m *Memory) ListTurns(_ context.Context, sessionID string) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	// copy so callers can never edit the log in place
	out := make([]Turn, len(m.turns[sessionID]))
	copy(out, m.turns[sessionID])
	return out, nil
}

func (m *Memory) GetDocument(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[sessionID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}
