// Package sync pulls transactions from linked bank connections into the
// ledger. Each page is merged and saved before the next is fetched, so an
// interrupted sync keeps everything already committed and the next run
// re-fetches only an overlap window.
package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/spendwell/spendwell/internal/adapters/truelayer"
	"github.com/spendwell/spendwell/internal/domain/categories"
	"github.com/spendwell/spendwell/internal/domain/categorizer"
	"github.com/spendwell/spendwell/internal/domain/ledger"
	"github.com/spendwell/spendwell/internal/infrastructure/connections"
	"github.com/spendwell/spendwell/internal/infrastructure/ledgerstore"
)

// Options holds sync window tuning.
type Options struct {
	// OverlapDays is re-fetched before the last sync checkpoint to catch
	// transactions the provider back-dated after the previous run.
	OverlapDays int
	// LookbackDays bounds the window for connections never synced before.
	LookbackDays int
}

// Result holds the outcome of syncing one connection.
type Result struct {
	ConnectionID string
	Provider     string
	Accounts     int
	// Pages counts committed pages; a page that normalizes to no rows is
	// fetched but not counted.
	Pages   int
	Added   int
	Skipped int
	// Partial means the run stopped before the window was exhausted.
	// Everything counted above is already saved.
	Partial     bool
	Suggestions map[string]string
}

// TransactionPager yields one page of provider transactions per call and
// (nil, nil) when the window is exhausted.
type TransactionPager interface {
	Next(ctx context.Context) ([]truelayer.APITransaction, error)
}

// BankData is the provider data surface the orchestrator needs.
type BankData interface {
	Accounts(ctx context.Context, accessToken string) ([]truelayer.Account, error)
	TransactionPages(accessToken string, account truelayer.Account, from, to time.Time) TransactionPager
}

// TokenSource supplies a valid access token for a connection.
type TokenSource interface {
	EnsureValidToken(ctx context.Context, conn *connections.Connection) (string, error)
}

// ConnectionStore is the connection persistence surface used here.
type ConnectionStore interface {
	Get(id string) (*connections.Connection, error)
	Update(conn *connections.Connection) error
}

// LedgerStore is the ledger persistence surface used here. Merge commits a
// page as one load-merge-save step under the store's lock, which keeps
// concurrent syncs of different connections from overwriting each other.
type LedgerStore interface {
	Load() (*ledger.Dataset, []ledgerstore.SchemaWarning, error)
	Merge(batch []ledger.Transaction) (ledger.MergeReport, []ledgerstore.SchemaWarning, error)
}

// CategoryStore is the overlay persistence surface used for suggestions.
type CategoryStore interface {
	Load() (categories.Overlay, error)
	Save(overlay categories.Overlay) error
}

// Orchestrator runs the sync process.
type Orchestrator struct {
	bank      BankData
	tokens    TokenSource
	conns     ConnectionStore
	ledger    LedgerStore
	suggester *categorizer.Suggester
	catStore  CategoryStore
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu       stdsync.Mutex
	inFlight map[string]*stdsync.Mutex
}

// NewOrchestrator creates a new sync orchestrator. The suggester and
// category store are optional; without them the suggestion pass is skipped.
func NewOrchestrator(
	bank BankData,
	tokens TokenSource,
	conns ConnectionStore,
	ledgerStore LedgerStore,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.OverlapDays <= 0 {
		opts.OverlapDays = 3
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 90
	}
	return &Orchestrator{
		bank:     bank,
		tokens:   tokens,
		conns:    conns,
		ledger:   ledgerStore,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]*stdsync.Mutex),
	}
}

// WithSuggestions enables the best-effort category suggestion pass after a
// clean sync.
func (o *Orchestrator) WithSuggestions(suggester *categorizer.Suggester, catStore CategoryStore) *Orchestrator {
	o.suggester = suggester
	o.catStore = catStore
	return o
}

// bankClient adapts the concrete provider client to BankData.
type bankClient struct {
	client *truelayer.Client
}

// NewBankData wraps a provider client for use by the orchestrator.
func NewBankData(c *truelayer.Client) BankData {
	return bankClient{client: c}
}

func (b bankClient) Accounts(ctx context.Context, accessToken string) ([]truelayer.Account, error) {
	return b.client.Accounts(ctx, accessToken)
}

func (b bankClient) TransactionPages(accessToken string, account truelayer.Account, from, to time.Time) TransactionPager {
	return b.client.TransactionPages(accessToken, account, from, to)
}
