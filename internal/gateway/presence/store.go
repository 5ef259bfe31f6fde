package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sebas/voicebridge/internal/gateway/store"
)

// ErrIntervalTooBrief is returned when the requested expires value is
// below the store minimum. The signaling layer should answer with the
// minimum so the client can re-register.
var ErrIntervalTooBrief = errors.New("interval too brief")

// ErrNotRegistered is returned when a handle has no active bindings.
var ErrNotRegistered = errors.New("not registered")

// Store tracks where web users can currently be reached.
// A handle may carry several bindings (multiple tabs or devices).
type Store struct {
	// Primary store: handle -> map of BindingID -> Binding
	bindings *store.TTLStore[string, map[string]*Binding]

	// Guards the binding maps and the Busy flag on stored bindings.
	// Writers take the write lock, readers the read lock and hand out
	// copies so callers never touch shared bindings unlocked.
	mu sync.RWMutex

	defaultExpires int
	maxExpires     int
	minExpires     int
}

// StoreConfig contains presence store configuration
type StoreConfig struct {
	CleanupInterval time.Duration // How often to clean expired entries
	DefaultExpires  int           // Default TTL in seconds
	MaxExpires      int           // Maximum TTL in seconds
	MinExpires      int           // Minimum TTL in seconds
}

// DefaultStoreConfig returns sensible defaults
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		CleanupInterval: 30 * time.Second,
		DefaultExpires:  60,
		MaxExpires:      120,
		MinExpires:      30,
	}
}

// NewStore creates a new presence store
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		bindings:       store.NewTTLStore[string, map[string]*Binding](cfg.CleanupInterval),
		defaultExpires: cfg.DefaultExpires,
		maxExpires:     cfg.MaxExpires,
		minExpires:     cfg.MinExpires,
	}
}

// Register adds or updates a binding for a handle.
// Returns the binding and any error.
func (s *Store) Register(binding *Binding) (*Binding, error) {
	if binding.Handle == "" {
		return nil, fmt.Errorf("handle cannot be empty")
	}
	if binding.ConnectionID == "" {
		return nil, fmt.Errorf("connection ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expires := binding.Expires
	if expires <= 0 {
		expires = s.defaultExpires
	}
	if expires < s.minExpires {
		return nil, ErrIntervalTooBrief
	}
	if expires > s.maxExpires {
		expires = s.maxExpires
	}

	if binding.BindingID == "" {
		binding.BindingID = GenerateBindingID(binding.Handle, binding.ConnectionID)
	}

	now := time.Now()
	binding.Expires = expires
	binding.ExpiresAt = now.Add(time.Duration(expires) * time.Second)
	binding.RegisteredAt = now

	bindingsMap, exists := s.bindings.Get(binding.Handle)
	if !exists {
		bindingsMap = make(map[string]*Binding)
	}
	bindingsMap[binding.BindingID] = binding

	// The map entry lives as long as its longest-lived binding.
	maxTTL := time.Duration(expires) * time.Second
	for _, b := range bindingsMap {
		if ttl := b.TTL(); ttl > maxTTL {
			maxTTL = ttl
		}
	}
	s.bindings.Set(binding.Handle, bindingsMap, maxTTL)

	slog.Info("[PRESENCE] Registered",
		"handle", binding.Handle,
		"binding_id", binding.BindingID,
		"connection", binding.ConnectionID,
		"expires", expires,
	)

	return binding, nil
}

// Unregister removes a binding.
// If isWildcard is true, removes all bindings for the handle.
func (s *Store) Unregister(handle string, bindingID string, isWildcard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isWildcard {
		s.bindings.Delete(handle)
		slog.Info("[PRESENCE] Unregistered all bindings", "handle", handle)
		return nil
	}

	bindingsMap, exists := s.bindings.Get(handle)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, handle)
	}
	if _, ok := bindingsMap[bindingID]; !ok {
		return fmt.Errorf("binding not found: %s", bindingID)
	}

	delete(bindingsMap, bindingID)

	if len(bindingsMap) == 0 {
		s.bindings.Delete(handle)
	} else {
		maxTTL := time.Duration(0)
		for _, b := range bindingsMap {
			if ttl := b.TTL(); ttl > maxTTL {
				maxTTL = ttl
			}
		}
		s.bindings.Set(handle, bindingsMap, maxTTL)
	}

	slog.Info("[PRESENCE] Unregistered", "handle", handle, "binding_id", bindingID)
	return nil
}

// Lookup returns all active bindings for a handle. The returned
// bindings are copies; mutating them does not affect the store.
func (s *Store) Lookup(handle string) []*Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bindingsMap, exists := s.bindings.Get(handle)
	if !exists {
		return nil
	}

	result := make([]*Binding, 0, len(bindingsMap))
	for _, b := range bindingsMap {
		if !b.IsExpired() {
			cp := *b
			result = append(result, &cp)
		}
	}
	return result
}

// LookupOne returns the highest priority non-expired binding for a handle
func (s *Store) LookupOne(handle string) *Binding {
	bindings := s.Lookup(handle)
	if len(bindings) == 0 {
		return nil
	}

	var best *Binding
	bestPrio := float32(-1)
	for _, b := range bindings {
		p := b.Priority
		if p == 0 {
			p = 1.0
		}
		if p > bestPrio {
			bestPrio = p
			best = b
		}
	}
	return best
}

// SetBusy marks every binding of the handle busy or available.
func (s *Store) SetBusy(handle string, busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bindingsMap, exists := s.bindings.Get(handle)
	if !exists {
		return
	}
	for _, b := range bindingsMap {
		b.Busy = busy
	}
}

// IsBusy reports whether any active binding of the handle is in a call.
func (s *Store) IsBusy(handle string) bool {
	for _, b := range s.Lookup(handle) {
		if b.Busy {
			return true
		}
	}
	return false
}

// Has returns true if the handle has any active bindings
func (s *Store) Has(handle string) bool {
	return len(s.Lookup(handle)) > 0
}

// List returns copies of all active bindings across all handles.
func (s *Store) List() []*Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Binding, 0)
	s.bindings.ForEach(func(_ string, bindingsMap map[string]*Binding) bool {
		for _, b := range bindingsMap {
			if !b.IsExpired() {
				cp := *b
				result = append(result, &cp)
			}
		}
		return true
	})
	return result
}

// Count returns the total number of active bindings
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	s.bindings.ForEach(func(_ string, bindingsMap map[string]*Binding) bool {
		for _, b := range bindingsMap {
			if !b.IsExpired() {
				count++
			}
		}
		return true
	})
	return count
}

// CountHandles returns the number of handles with active bindings
func (s *Store) CountHandles() int {
	return s.bindings.Len()
}

// MinExpires returns the minimum allowed expires value in seconds.
func (s *Store) MinExpires() int {
	return s.minExpires
}

// Close stops the cleanup goroutine
func (s *Store) Close() {
	s.bindings.Close()
}
