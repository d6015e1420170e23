package subscription

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Manager manages all subscription sessions
type Manager struct {
	sessions map[*websocket.Conn]*ClientSession
	registry *Registry
	mu       sync.RWMutex
	maxSubs  int
	logger   zerolog.Logger
}

// NewManager creates a new subscription Manager
func NewManager(registry *Registry, maxSubs int, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[*websocket.Conn]*ClientSession),
		registry: registry,
		maxSubs:  maxSubs,
		logger:   logger.With().Str("component", "subscription").Logger(),
	}
}

// GetOrCreateSession gets or creates a session for the given connection
func (m *Manager) GetOrCreateSession(conn *websocket.Conn, sendFunc SendFunc) *ClientSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[conn]; ok {
		return session
	}

	session := NewClientSession(sendFunc, m.registry, m.maxSubs, m.logger)
	m.sessions[conn] = session
	m.logger.Debug().Msg("created new client session")
	return session
}

// GetSession returns the session for the given connection
func (m *Manager) GetSession(conn *websocket.Conn) *ClientSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[conn]
}

// RemoveSession removes and closes a session
func (m *Manager) RemoveSession(conn *websocket.Conn) {
	m.mu.Lock()
	session, ok := m.sessions[conn]
	if ok {
		delete(m.sessions, conn)
	}
	m.mu.Unlock()

	if session != nil {
		session.Close()
		m.logger.Debug().Msg("removed client session")
	}
}

// CloseAll closes all sessions
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*ClientSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[*websocket.Conn]*ClientSession)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	m.logger.Info().Int("sessions", len(sessions)).Msg("closed all sessions")
}

// GetSessionCount returns the number of active sessions
func (m *Manager) GetSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetTotalSubscriptionCount returns the total number of subscriptions across all sessions
func (m *Manager) GetTotalSubscriptionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, session := range m.sessions {
		total += session.GetSubscriptionCount()
	}
	return total
}
