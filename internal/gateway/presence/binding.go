package presence

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Binding records where a web user can currently be reached.
// Multiple bindings per handle are supported (same user, multiple tabs
// or devices).
type Binding struct {
	// Identity
	Handle    string `json:"handle"`     // canonical user@domain handle
	BindingID string `json:"binding_id"` // unique ID for this binding

	// Delivery information
	ConnectionID string `json:"connection_id"` // signaling connection carrying this binding
	UserAgent    string `json:"user_agent,omitempty"`

	// Busy is set while the user is in an active call.
	Busy bool `json:"busy"`

	// Priority picks among multiple bindings. Higher wins, default 1.0.
	Priority float32 `json:"priority,omitempty"`

	// Timing
	ExpiresAt    time.Time `json:"expires_at"`
	RegisteredAt time.Time `json:"registered_at"`
	Expires      int       `json:"expires"` // requested TTL in seconds
}

// GenerateBindingID derives a stable binding ID from the connection.
func GenerateBindingID(handle, connectionID string) string {
	hash := sha256.Sum256([]byte(handle + ";" + connectionID))
	return hex.EncodeToString(hash[:8])
}

// IsExpired returns true if the binding has expired
func (b *Binding) IsExpired() bool {
	return time.Now().After(b.ExpiresAt)
}

// TTL returns remaining time until expiration
func (b *Binding) TTL() time.Duration {
	remaining := time.Until(b.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
