// Package client is a Go client for the authcore HTTP API. It keeps the
// session token per server in a CredentialStore and sends it as a bearer token.
package client

import (
	"sync"
	"time"

	ac "github.com/interviewhub/authcore"
)

// ServerCredential is the session held for one server
type ServerCredential struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	Role      ac.Role   `json:"role,omitempty"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the session cookie lifetime has passed.
// The server may still reject an unexpired token after logout or a reset.
func (c *ServerCredential) IsExpired() bool {
	return c.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the session is over at now. A zero ExpiresAt
// never expires locally.
func (c *ServerCredential) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CredentialStore defines the interface for storing and retrieving credentials
type CredentialStore interface {
	// GetCredential retrieves a credential for a server URL
	// Returns nil, nil if no credential exists for the server
	GetCredential(serverURL string) (*ServerCredential, error)

	SetCredential(serverURL string, cred *ServerCredential) error

	RemoveCredential(serverURL string) error

	// ListServers returns all server URLs with stored credentials
	ListServers() ([]string, error)

	// Save persists any pending changes (for stores that batch writes)
	Save() error
}

// MemoryStore keeps credentials for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]*ServerCredential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: map[string]*ServerCredential{}}
}

func (m *MemoryStore) GetCredential(serverURL string) (*ServerCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds[serverURL], nil
}

func (m *MemoryStore) SetCredential(serverURL string, cred *ServerCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[serverURL] = cred
	return nil
}

func (m *MemoryStore) RemoveCredential(serverURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, serverURL)
	return nil
}

func (m *MemoryStore) ListServers() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	servers := make([]string, 0, len(m.creds))
	for k := range m.creds {
		servers = append(servers, k)
	}
	return servers, nil
}

func (m *MemoryStore) Save() error { return nil }
