// Package connections persists linked bank connections and their OAuth
// token state. The store file is a JSON array readable by the owning user
// only; token values are opaque here and must never be logged.
package connections

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spendwell/spendwell/internal/infrastructure/atomicfile"
)

const filePerm = 0o600

// ErrNotFound is returned when a connection ID has no stored record.
var ErrNotFound = errors.New("connection not found")

// Connection is one linked bank integration: an OAuth token pair plus its
// sync checkpoint. LastSyncedAt is nil until the first fully successful
// sync.
type Connection struct {
	ID             string     `json:"connection_id"`
	ProviderName   string     `json:"provider_name"`
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token"`
	TokenExpiresAt time.Time  `json:"expires_at"`
	LastSyncedAt   *time.Time `json:"last_sync_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Authenticated reports whether the connection still holds a usable token
// pair. Cleared tokens mean the user must re-link.
func (c *Connection) Authenticated() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// TokenExpired reports whether the access token is expired at t, with a
// small slack so a token about to lapse mid-request counts as expired.
func (c *Connection) TokenExpired(t time.Time, slack time.Duration) bool {
	return !t.Add(slack).Before(c.TokenExpiresAt)
}

// Store owns the connections file.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns all stored connections. A missing file is an empty list.
func (s *Store) List() ([]*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) listLocked() ([]*Connection, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read connections file: %w", err)
	}

	var conns []*Connection
	if err := json.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("parse connections file: %w", err)
	}
	return conns, nil
}

// Get returns the connection with the given ID.
func (s *Store) Get(id string) (*Connection, error) {
	conns, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends a new connection.
func (s *Store) Add(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, err := s.listLocked()
	if err != nil {
		return err
	}
	conns = append(conns, conn)
	return s.saveLocked(conns)
}

// Update replaces the stored record with the same ID. Connection state is
// mutated on every token refresh and every successful sync, so this is the
// hot path.
func (s *Store) Update(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, err := s.listLocked()
	if err != nil {
		return err
	}
	for i, c := range conns {
		if c.ID == conn.ID {
			conns[i] = conn
			return s.saveLocked(conns)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, conn.ID)
}

// Remove deletes a connection. Removal is always an explicit user action;
// nothing in the sync path calls this.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, err := s.listLocked()
	if err != nil {
		return err
	}
	kept := conns[:0]
	for _, c := range conns {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(conns) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.saveLocked(kept)
}

func (s *Store) saveLocked(conns []*Connection) error {
	if conns == nil {
		conns = []*Connection{}
	}
	data, err := json.MarshalIndent(conns, "", "  ")
	if err != nil {
		return fmt.Errorf("encode connections: %w", err)
	}
	if err := atomicfile.WriteBytes(s.path, filePerm, data); err != nil {
		return fmt.Errorf("save connections: %w", err)
	}
	return nil
}
