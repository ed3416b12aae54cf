package categories

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendwell/spendwell/internal/domain/ledger"
)

func row(merchant string) ledger.Transaction {
	return ledger.Transaction{
		Date:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Merchant: merchant,
		Amount:   decimal.RequireFromString("45.30"),
		Type:     ledger.TypeExpense,
		Source:   "CSV Import",
	}
}

func TestOverlay_LookupAndSet(t *testing.T) {
	o := Overlay{}
	o.Set(" Acme Store ", "Shopping")

	cat, ok := o.Lookup("Acme Store")
	require.True(t, ok)
	assert.Equal(t, "Shopping", cat)

	o.Delete("Acme Store")
	_, ok = o.Lookup("Acme Store")
	assert.False(t, ok)
}

func TestOverlay_CategorizeFuzzy(t *testing.T) {
	o := Overlay{"Acme Store": "Shopping"}

	// Exact hit.
	assert.Equal(t, "Shopping", o.Categorize(row("Acme Store"), 3))
	// Close bank-feed variant, case-insensitive.
	assert.Equal(t, "Shopping", o.Categorize(row("ACME STORES"), 3))
	// Too far away.
	assert.Equal(t, "", o.Categorize(row("Totally Different"), 3))
	// Fuzzy matching disabled.
	assert.Equal(t, "", o.Categorize(row("ACME STORES"), 0))
}

func TestOverlay_Uncategorized(t *testing.T) {
	o := Overlay{"Acme Store": "Shopping"}
	rows := []ledger.Transaction{row("Acme Store"), row("Cafe Uno"), row("Cafe Uno"), row("  ")}

	assert.Equal(t, []string{"Cafe Uno"}, o.Uncategorized(rows))
}

// TestOverlay_EditingNeverTouchesLedger pins the separation of
// categorization from identity: rewriting the overlay changes no row and no
// key of the dataset it is joined against.
func TestOverlay_EditingNeverTouchesLedger(t *testing.T) {
	ds := ledger.NewDataset([]ledger.Transaction{row("Acme Store"), row("Cafe Uno")})
	before := ds.Clone()

	o := Overlay{}
	o.Set("Acme Store", "Shopping")
	o.Set("Acme Store", "Groceries")
	o.Delete("Acme Store")
	for _, r := range ds.Rows() {
		_ = o.Categorize(r, 3)
	}

	assert.True(t, ds.Equal(before))
	assert.Equal(t, before.Len(), ds.Len())
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	store := NewStore(path)

	// Missing file loads as empty.
	overlay, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, overlay)

	overlay.Set("Acme Store", "Shopping")
	overlay.Set("Cafe Uno", "Eating Out")
	require.NoError(t, store.Save(overlay))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, overlay, loaded)
}
