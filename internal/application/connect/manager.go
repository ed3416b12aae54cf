// Package connect manages the lifecycle of linked bank connections:
// authorization code exchange, token refresh, and removal.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spendwell/spendwell/internal/adapters/truelayer"
	"github.com/spendwell/spendwell/internal/infrastructure/connections"
)

// expirySlack treats tokens expiring within the next minute as already
// expired, so a token never lapses mid sync.
const expirySlack = 60 * time.Second

// ErrReauthRequired means the stored tokens are dead and the user must
// link the bank again. It is never resolved by retrying.
var ErrReauthRequired = errors.New("connection requires re-linking")

// BankAuth is the provider auth surface the manager needs.
type BankAuth interface {
	ExchangeCode(ctx context.Context, code string) (*truelayer.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*truelayer.Token, error)
	Accounts(ctx context.Context, accessToken string) ([]truelayer.Account, error)
}

// ConnectionStore persists connection records.
type ConnectionStore interface {
	List() ([]*connections.Connection, error)
	Get(id string) (*connections.Connection, error)
	Add(conn *connections.Connection) error
	Update(conn *connections.Connection) error
	Remove(id string) error
}

// Manager owns connection records and keeps their tokens usable.
type Manager struct {
	client BankAuth
	store  ConnectionStore
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a new connection manager
func NewManager(client BankAuth, store ConnectionStore, logger *slog.Logger) *Manager {
	return &Manager{
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Authorize exchanges an authorization code for tokens and stores the new
// connection. The provider name is discovered from the linked accounts;
// a failed discovery still links the connection.
func (m *Manager) Authorize(ctx context.Context, code string) (*connections.Connection, error) {
	token, err := m.client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	providerName := "Unknown Bank"
	if accounts, err := m.client.Accounts(ctx, token.AccessToken); err != nil {
		m.logger.Warn("Provider name discovery failed", "error", err)
	} else {
		providerName = truelayer.ProviderName(accounts)
	}

	conn := &connections.Connection{
		ID:             uuid.NewString(),
		ProviderName:   providerName,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.ExpiresAt,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.store.Add(conn); err != nil {
		return nil, fmt.Errorf("store connection: %w", err)
	}

	m.logger.Info("Linked bank connection",
		"connection_id", conn.ID,
		"provider", conn.ProviderName,
	)
	return conn, nil
}

// EnsureValidToken returns an access token that is valid for at least the
// next minute, refreshing it first when needed. A rejected refresh clears
// the stored tokens; the caller sees ErrReauthRequired and must re-link.
func (m *Manager) EnsureValidToken(ctx context.Context, conn *connections.Connection) (string, error) {
	if !conn.Authenticated() {
		return "", fmt.Errorf("%w: %s", ErrReauthRequired, conn.ID)
	}
	if !conn.TokenExpired(m.now(), expirySlack) {
		return conn.AccessToken, nil
	}

	m.logger.Debug("Refreshing access token", "connection_id", conn.ID)
	token, err := m.client.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		var authErr *truelayer.AuthError
		if errors.As(err, &authErr) && authErr.ReauthRequired() {
			conn.AccessToken = ""
			conn.RefreshToken = ""
			if updateErr := m.store.Update(conn); updateErr != nil {
				m.logger.Error("Failed to clear dead tokens", "connection_id", conn.ID, "error", updateErr)
			}
			return "", fmt.Errorf("%w: %s: %w", ErrReauthRequired, conn.ID, err)
		}
		return "", fmt.Errorf("refresh token for %s: %w", conn.ID, err)
	}

	conn.AccessToken = token.AccessToken
	conn.RefreshToken = token.RefreshToken
	conn.TokenExpiresAt = token.ExpiresAt
	if err := m.store.Update(conn); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	return conn.AccessToken, nil
}

// List returns all linked connections.
func (m *Manager) List() ([]*connections.Connection, error) {
	return m.store.List()
}

// Get returns one connection by ID.
func (m *Manager) Get(id string) (*connections.Connection, error) {
	return m.store.Get(id)
}

// Remove unlinks a connection. Ledger rows synced from it are kept.
func (m *Manager) Remove(id string) error {
	if err := m.store.Remove(id); err != nil {
		return err
	}
	m.logger.Info("Removed bank connection", "connection_id", id)
	return nil
}
