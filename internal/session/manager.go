// Package session keeps one studio per browser session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dkr290/genmap-web/internal/studio"
)

const (
	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = 12 * time.Hour
	// MaxSessions caps memory; the least recently used session is evicted first.
	MaxSessions = 500

	sweepInterval = 10 * time.Minute
)

type entry struct {
	studio   *studio.Studio
	lastSeen time.Time
}

// Manager maps session ids to studios.
type Manager struct {
	newStudio func() *studio.Studio
	ttl       time.Duration
	logger    *log.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager creates a manager that builds studios with newStudio.
func NewManager(newStudio func() *studio.Studio, ttl time.Duration, logger *log.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		newStudio: newStudio,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*entry),
	}
}

// GetOrCreate returns the studio for id. An unknown or malformed id gets a
// fresh session; the returned id is the one the client must keep using, and
// created reports whether the studio is new and still needs loading.
func (m *Manager) GetOrCreate(id string) (sid string, s *studio.Studio, created bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		if e, ok := m.sessions[id]; ok {
			e.lastSeen = now
			return id, e.studio, false
		}
	}

	if len(m.sessions) >= MaxSessions {
		m.evictOldest()
	}
	sid = uuid.NewString()
	s = m.newStudio()
	m.sessions[sid] = &entry{studio: s, lastSeen: now}
	m.logger.Debug("session created", "id", sid, "total", len(m.sessions))
	return sid, s, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep removes sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("swept idle sessions", "removed", removed, "total", len(m.sessions))
	}
	return removed
}

func (m *Manager) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, e := range m.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
	}
}
