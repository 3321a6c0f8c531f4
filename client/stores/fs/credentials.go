// Package fs keeps authcore client sessions in a JSON file, one per server.
// Sessions whose cookie lifetime has passed are dropped when the file is read
// and never written back.
package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/interviewhub/authcore/client"
)

// FSCredentialStore is a client.CredentialStore on one owner-only JSON file.
// Changes are held in memory until Save.
type FSCredentialStore struct {
	// Clock for session expiry. Defaults to time.Now.
	Now func() time.Time

	mu       sync.RWMutex
	path     string
	sessions map[string]*client.ServerCredential
	dirty    bool
}

var _ client.CredentialStore = (*FSCredentialStore)(nil)

type sessionsFile struct {
	Servers map[string]*client.ServerCredential `json:"servers"`
}

// NewFSCredentialStore opens the file at path, or at
// <user config dir>/<appName>/credentials.json when path is empty.
// A missing file is an empty store.
func NewFSCredentialStore(path string, appName string) (*FSCredentialStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine config directory: %w", err)
		}
		if appName == "" {
			appName = "authcore"
		}
		path = filepath.Join(configDir, appName, "credentials.json")
	}

	s := &FSCredentialStore{
		Now:      time.Now,
		path:     path,
		sessions: make(map[string]*client.ServerCredential),
	}
	if err := s.read(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

func (s *FSCredentialStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// usable reports whether cred still holds a live session at now.
func usable(cred *client.ServerCredential, now time.Time) bool {
	return cred != nil && cred.Token != "" && !cred.ExpiredAt(now)
}

func (s *FSCredentialStore) read() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var file sessionsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}

	now := s.now()
	for server, cred := range file.Servers {
		if !usable(cred, now) {
			// rewrite the file without it on the next Save
			s.dirty = true
			continue
		}
		s.sessions[server] = cred
	}
	return nil
}

// serverKey reduces a URL to scheme://host; a missing scheme means https.
func serverKey(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme == "" {
		u, err = url.Parse("https://" + serverURL)
	}
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	return u.Scheme + "://" + u.Host, nil
}

// GetCredential returns the live session for serverURL, or nil once it has expired.
func (s *FSCredentialStore) GetCredential(serverURL string) (*client.ServerCredential, error) {
	key, err := serverKey(serverURL)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cred := s.sessions[key]; usable(cred, s.now()) {
		return cred, nil
	}
	return nil, nil
}

func (s *FSCredentialStore) SetCredential(serverURL string, cred *client.ServerCredential) error {
	key, err := serverKey(serverURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = cred
	s.dirty = true
	return nil
}

func (s *FSCredentialStore) RemoveCredential(serverURL string) error {
	key, err := serverKey(serverURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; ok {
		delete(s.sessions, key)
		s.dirty = true
	}
	return nil
}

// ListServers returns, sorted, the servers holding a live session.
func (s *FSCredentialStore) ListServers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	servers := make([]string, 0, len(s.sessions))
	for server, cred := range s.sessions {
		if usable(cred, now) {
			servers = append(servers, server)
		}
	}
	sort.Strings(servers)
	return servers, nil
}

// Save drops expired sessions and replaces the file atomically.
func (s *FSCredentialStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for server, cred := range s.sessions {
		if !usable(cred, now) {
			delete(s.sessions, server)
			s.dirty = true
		}
	}
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(sessionsFile{Servers: s.sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	if err := replaceFile(s.path, data); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	s.dirty = false
	return nil
}

// replaceFile writes data next to path and renames it into place. CreateTemp
// opens the file 0600, which is the mode the tokens need.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FSCredentialStore) Path() string {
	return s.path
}
