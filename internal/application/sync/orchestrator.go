package sync

import (
	"context"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/spendwell/spendwell/internal/adapters/truelayer"
	"github.com/spendwell/spendwell/internal/domain/categories"
	"github.com/spendwell/spendwell/internal/domain/ledger"
	"github.com/spendwell/spendwell/internal/infrastructure/connections"
)

// SyncConnection pulls the sync window for one connection into the ledger.
// Concurrent calls for the same connection serialize; different connections
// run independently.
//
// On a page failure the already-saved pages stay committed, the returned
// Result is marked Partial, and the sync checkpoint does not advance, so
// the next run re-fetches the unfinished window.
func (o *Orchestrator) SyncConnection(ctx context.Context, id string) (*Result, error) {
	lock := o.connLock(id)
	lock.Lock()
	defer lock.Unlock()

	conn, err := o.conns.Get(id)
	if err != nil {
		return nil, err
	}

	token, err := o.tokens.EnsureValidToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	from, to := o.window(conn)
	o.logger.Info("Starting sync",
		"connection_id", conn.ID,
		"provider", conn.ProviderName,
		"from", from.Format(ledger.DateLayout),
		"to", to.Format(ledger.DateLayout),
	)

	accounts, err := o.bank.Accounts(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list accounts for %s: %w", conn.ID, err)
	}

	result := &Result{
		ConnectionID: conn.ID,
		Provider:     conn.ProviderName,
		Accounts:     len(accounts),
	}

	for _, account := range accounts {
		if err := o.syncAccount(ctx, token, conn.ProviderName, account, from, to, result); err != nil {
			result.Partial = true
			o.logger.Error("Sync stopped early",
				"connection_id", conn.ID,
				"account", account.Label(),
				"pages_committed", result.Pages,
				"error", err,
			)
			return result, err
		}
	}

	now := o.now().UTC()
	conn.LastSyncedAt = &now
	if err := o.conns.Update(conn); err != nil {
		return result, fmt.Errorf("advance sync checkpoint: %w", err)
	}

	o.logger.Info("Sync complete",
		"connection_id", conn.ID,
		"accounts", result.Accounts,
		"pages", result.Pages,
		"added", result.Added,
		"skipped", result.Skipped,
	)

	o.suggestCategories(ctx, result)
	return result, nil
}

// syncAccount walks one account's pages, committing each through the store
// before fetching the next. Every commit re-reads the file under the store
// lock, so a sync running for another connection at the same time keeps its
// rows. A page that normalizes to nothing is skipped without a commit.
func (o *Orchestrator) syncAccount(
	ctx context.Context,
	token, providerName string,
	account truelayer.Account,
	from, to time.Time,
	result *Result,
) error {
	source := truelayer.SourceTag(providerName, account)
	iter := o.bank.TransactionPages(token, account, from, to)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := iter.Next(ctx)
		if err != nil {
			return fmt.Errorf("fetch page for %s: %w", account.Label(), err)
		}
		if page == nil {
			return nil
		}

		rows := truelayer.Normalize(page, source)
		if len(rows) == 0 {
			continue
		}

		report, warnings, err := o.ledger.Merge(rows)
		if err != nil {
			return fmt.Errorf("commit page for %s: %w", account.Label(), err)
		}
		for _, w := range warnings {
			o.logger.Warn("Ledger schema migrated", "migration", w.Migration, "rows", w.Rows)
		}
		result.Pages++
		result.Added += report.Added
		result.Skipped += report.Skipped

		o.logger.Debug("Committed page",
			"account", account.Label(),
			"added", report.Added,
			"skipped", report.Skipped,
		)
	}
}

// window returns the fetch range: from the last checkpoint minus the
// overlap, bounded below by the lookback horizon.
func (o *Orchestrator) window(conn *connections.Connection) (time.Time, time.Time) {
	to := o.now().UTC()
	from := to.AddDate(0, 0, -o.opts.LookbackDays)
	if conn.LastSyncedAt != nil {
		if candidate := conn.LastSyncedAt.AddDate(0, 0, -o.opts.OverlapDays); candidate.After(from) {
			from = candidate
		}
	}
	return from, to
}

// suggestCategories asks the model to place merchants the overlay does not
// cover yet. Best effort: failures are logged and never fail the sync.
func (o *Orchestrator) suggestCategories(ctx context.Context, result *Result) {
	if o.suggester == nil || o.catStore == nil {
		return
	}

	dataset, _, err := o.ledger.Load()
	if err != nil {
		o.logger.Warn("Category suggestions skipped", "error", err)
		return
	}

	overlay, err := o.catStore.Load()
	if err != nil {
		o.logger.Warn("Category suggestions skipped", "error", err)
		return
	}

	uncategorized := overlay.Uncategorized(dataset.Active())
	known := distinctCategories(overlay)
	if len(uncategorized) == 0 || len(known) == 0 {
		return
	}

	suggestions, err := o.suggester.Suggest(ctx, uncategorized, known)
	if err != nil {
		o.logger.Warn("Category suggestions failed", "error", err)
		return
	}
	if len(suggestions) == 0 {
		return
	}

	for merchant, category := range suggestions {
		overlay.Set(merchant, category)
	}
	if err := o.catStore.Save(overlay); err != nil {
		o.logger.Warn("Saving category suggestions failed", "error", err)
		return
	}
	result.Suggestions = suggestions
	o.logger.Info("Suggested categories for new merchants", "count", len(suggestions))
}

func distinctCategories(overlay categories.Overlay) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range overlay.Merchants() {
		if cat, ok := overlay.Lookup(m); ok && !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	sort.Strings(out)
	return out
}

// connLock returns the per-connection mutex, creating it on first use.
func (o *Orchestrator) connLock(id string) *stdsync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.inFlight[id]
	if !ok {
		lock = &stdsync.Mutex{}
		o.inFlight[id] = lock
	}
	return lock
}
