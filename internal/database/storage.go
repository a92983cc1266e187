package database

import "sync"

// Storage is a string key/value area scoped to one browsing session
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// SessionStorage is the SQLite-backed Storage for a single session
type SessionStorage struct {
	db        *Database
	sessionID string
}

// Get returns the stored value; read errors are logged and treated as absent
func (s *SessionStorage) Get(key string) (string, bool) {
	value, ok, err := s.db.get(s.sessionID, key)
	if err != nil {
		s.db.logger.WithError(err).WithField("key", key).Warn("Failed to read session value")
		return "", false
	}
	return value, ok
}

// Set stores value under key and refreshes the session's activity time
func (s *SessionStorage) Set(key, value string) error {
	return s.db.set(s.sessionID, key, value)
}

// SessionID returns the session this storage is bound to
func (s *SessionStorage) SessionID() string {
	return s.sessionID
}

// MemoryStorage keeps values in process memory
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get returns the stored value
func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key
func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
