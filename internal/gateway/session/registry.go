package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sebas/voicebridge/internal/gateway/store"
)

// Session TTL constants
const (
	// ActiveSessionTTL bounds how long a live session may sit in the
	// registry without terminating (4 hours)
	ActiveSessionTTL = 4 * time.Hour
	// TerminatedSessionTTL keeps terminated sessions visible briefly so
	// late signaling can be answered instead of treated as unknown
	TerminatedSessionTTL = 30 * time.Second
	// SessionCleanupInterval is how often the cleanup loop runs
	SessionCleanupInterval = 10 * time.Second
)

// Registry is the central store for all call sessions
type Registry struct {
	sessions *store.TTLStore[string, *CallSession]
}

// NewRegistry creates a session registry with automatic cleanup
func NewRegistry() *Registry {
	r := &Registry{
		sessions: store.NewTTLStore[string, *CallSession](SessionCleanupInterval),
	}

	r.sessions.SetOnEvict(func(id string, s *CallSession) {
		slog.Debug("[Session] Evicted from registry", "call_id", id, "state", s.State())
	})

	return r
}

// Add registers a new session. Duplicate IDs are rejected.
func (r *Registry) Add(s *CallSession) error {
	if s.ID == "" {
		return fmt.Errorf("session missing ID")
	}
	if existing, exists := r.sessions.Get(s.ID); exists && !existing.IsTerminated() {
		return fmt.Errorf("session already registered: %s", s.ID)
	}

	r.sessions.Set(s.ID, s, ActiveSessionTTL)
	slog.Info("[Session] Registered", "call_id", s.ID,
		"caller", s.Caller.Handle, "callee", s.Callee.Handle,
		"direction", s.Direction.String())
	return nil
}

// Get retrieves a session by call ID
func (r *Registry) Get(id string) (*CallSession, bool) {
	return r.sessions.Get(id)
}

// MarkTerminated shortens a terminated session's registry TTL so the
// cleanup loop removes it soon.
func (r *Registry) MarkTerminated(s *CallSession) {
	r.sessions.Set(s.ID, s, TerminatedSessionTTL)
	slog.Debug("[Session] Scheduled for cleanup", "call_id", s.ID, "ttl", TerminatedSessionTTL)
}

// FindByParty returns the first active session involving the handle.
func (r *Registry) FindByParty(handle string) (*CallSession, bool) {
	var found *CallSession
	r.sessions.ForEach(func(_ string, s *CallSession) bool {
		if s.IsTerminated() {
			return true
		}
		if s.Caller.Handle == handle || s.Callee.Handle == handle {
			found = s
			return false // stop iteration
		}
		return true
	})
	return found, found != nil
}

// List returns all sessions (including terminated ones pending cleanup)
func (r *Registry) List() []*CallSession {
	result := make([]*CallSession, 0, r.sessions.Len())
	r.sessions.ForEach(func(_ string, s *CallSession) bool {
		result = append(result, s)
		return true
	})
	return result
}

// CountActive returns the number of non-terminated sessions
func (r *Registry) CountActive() int {
	count := 0
	r.sessions.ForEach(func(_ string, s *CallSession) bool {
		if !s.IsTerminated() {
			count++
		}
		return true
	})
	return count
}

// ForEach iterates over all sessions, stopping if fn returns false
func (r *Registry) ForEach(fn func(*CallSession) bool) {
	r.sessions.ForEach(func(_ string, s *CallSession) bool {
		return fn(s)
	})
}

// Close stops the cleanup goroutine and releases resources
func (r *Registry) Close() {
	r.sessions.Close()
}
