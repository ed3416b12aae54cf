package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(date, merchant, amount string, typ Type, source string) Transaction {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		panic(err)
	}
	return Transaction{
		Date:     d,
		Merchant: merchant,
		Amount:   decimal.RequireFromString(amount),
		Type:     typ,
		Source:   source,
	}
}

// TestMerge_SkipsDuplicates re-fetches a window where most of the batch is
// already in the ledger: 6 of the 10 incoming rows share a key with an
// existing row and are dropped, even where type or source disagrees.
func TestMerge_SkipsDuplicates(t *testing.T) {
	existing := NewDataset([]Transaction{
		tx("2025-01-10", "Acme Store", "45.30", TypeExpense, "CSV Import"),
		tx("2025-01-11", "Cafe Uno", "3.50", TypeExpense, "CSV Import"),
		tx("2025-01-12", "Grocer", "28.15", TypeExpense, "CSV Import"),
		tx("2025-01-13", "Petrol Co", "60.00", TypeExpense, "CSV Import"),
		tx("2025-01-14", "Employer", "2100.00", TypeIncome, "CSV Import"),
		tx("2025-01-15", "Cinema", "12.50", TypeExpense, "CSV Import"),
	})

	// The same six events arriving from a bank sync with a different source
	// tag, plus four genuinely new ones.
	incoming := []Transaction{
		tx("2025-01-10", "Acme Store", "45.30", TypeExpense, "Bank - X"),
		tx("2025-01-11", "Cafe Uno", "3.50", TypeExpense, "Bank - X"),
		tx("2025-01-12", "Grocer", "28.15", TypeExpense, "Bank - X"),
		tx("2025-01-13", "Petrol Co", "60.00", TypeExpense, "Bank - X"),
		tx("2025-01-14", "Employer", "2100.00", TypeExpense, "Bank - X"),
		tx("2025-01-15", "Cinema", "12.50", TypeExpense, "Bank - X"),
		tx("2025-01-16", "Pharmacy", "8.99", TypeExpense, "Bank - X"),
		tx("2025-01-17", "Bakery", "2.40", TypeExpense, "Bank - X"),
		tx("2025-01-18", "Bookshop", "14.00", TypeExpense, "Bank - X"),
		tx("2025-01-19", "Landlord", "900.00", TypeExpense, "Bank - X"),
	}

	merged, report := Merge(existing, incoming)

	assert.Equal(t, 4, report.Added)
	assert.Equal(t, 6, report.Skipped)
	require.Equal(t, 10, merged.Len())
	// The existing rows are untouched; their source stays CSV Import.
	for _, row := range merged.Rows()[:6] {
		assert.Equal(t, "CSV Import", row.Source)
	}
	for _, row := range merged.Rows()[6:] {
		assert.Equal(t, "Bank - X", row.Source)
	}
}

// TestMerge_Idempotent checks Merge(Merge(L,B), B) == Merge(L,B).
func TestMerge_Idempotent(t *testing.T) {
	existing := NewDataset([]Transaction{
		tx("2025-02-01", "Grocer", "12.00", TypeExpense, "CSV Import"),
	})
	batch := []Transaction{
		tx("2025-02-02", "Cafe", "3.50", TypeExpense, "Bank - X"),
		tx("2025-02-03", "Employer", "1500.00", TypeIncome, "Bank - X"),
	}

	once, r1 := Merge(existing, batch)
	twice, r2 := Merge(once, batch)

	assert.Equal(t, 2, r1.Added)
	assert.Equal(t, 0, r2.Added)
	assert.Equal(t, 2, r2.Skipped)
	assert.True(t, once.Equal(twice))
}

// TestMerge_ActiveKeyUniqueness merges overlapping batches and asserts the
// identity invariant over the result.
func TestMerge_ActiveKeyUniqueness(t *testing.T) {
	existing := NewDataset(nil)
	batchA := []Transaction{
		tx("2025-03-01", "A", "1.00", TypeExpense, "csv"),
		tx("2025-03-02", "B", "2.00", TypeExpense, "csv"),
	}
	batchB := []Transaction{
		tx("2025-03-02", "B", "2.00", TypeExpense, "bank"),
		tx("2025-03-03", "C", "3.00", TypeExpense, "bank"),
		tx("2025-03-03", "C", "3.00", TypeExpense, "bank"), // dup inside the batch
	}

	merged, _ := Merge(existing, batchA)
	merged, report := Merge(merged, batchB)

	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 2, report.Skipped)

	seen := make(map[Key]bool)
	for _, row := range merged.Active() {
		assert.False(t, seen[row.Key()], "duplicate active key %s", row.Key())
		seen[row.Key()] = true
	}
}

// TestMerge_ReinsertAfterSoftDelete covers the key-reuse policy: a synced row
// matching a soft-deleted key is inserted as a fresh row next to the tombstone.
func TestMerge_ReinsertAfterSoftDelete(t *testing.T) {
	deleted := tx("2025-04-05", "Refunder", "20.00", TypeExpense, "bank")
	deleted.Deleted = true
	existing := NewDataset([]Transaction{deleted})

	merged, report := Merge(existing, []Transaction{
		tx("2025-04-05", "Refunder", "20.00", TypeExpense, "bank"),
	})

	assert.Equal(t, 1, report.Added)
	require.Equal(t, 2, merged.Len())
	assert.True(t, merged.Rows()[0].Deleted)
	assert.False(t, merged.Rows()[1].Deleted)
	assert.Len(t, merged.Active(), 1)
}

// TestMerge_NormalizesIncoming ensures key equality survives formatting
// differences in merchant whitespace and amount precision.
func TestMerge_NormalizesIncoming(t *testing.T) {
	existing := NewDataset([]Transaction{
		tx("2025-05-01", "Corner Shop", "9.90", TypeExpense, "csv"),
	})

	incoming := Transaction{
		Date:     time.Date(2025, 5, 1, 14, 33, 0, 0, time.UTC), // intraday timestamp
		Merchant: "  Corner Shop ",
		Amount:   decimal.RequireFromString("9.9"),
		Type:     TypeExpense,
		Source:   "bank",
	}

	_, report := Merge(existing, []Transaction{incoming})
	assert.Equal(t, 1, report.Skipped)
}

// TestMerge_DoesNotMutateInputs guards the pure-function contract.
func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := NewDataset([]Transaction{
		tx("2025-06-01", "A", "1.00", TypeExpense, "csv"),
	})
	before := existing.Clone()

	_, _ = Merge(existing, []Transaction{
		tx("2025-06-02", "B", "2.00", TypeExpense, "bank"),
	})

	assert.True(t, existing.Equal(before))
}

func TestDataset_SoftDelete(t *testing.T) {
	ds := NewDataset([]Transaction{
		tx("2025-07-01", "A", "1.00", TypeExpense, "csv"),
		tx("2025-07-02", "B", "2.00", TypeExpense, "csv"),
	})

	target := tx("2025-07-01", "A", "1.00", TypeExpense, "ignored").Key()
	count := ds.SoftDelete(map[Key]struct{}{target: {}})

	assert.Equal(t, 1, count)
	assert.Equal(t, 2, ds.Len(), "soft delete must not remove rows")
	assert.Len(t, ds.Active(), 1)

	// Deleting the same key again is a no-op.
	assert.Equal(t, 0, ds.SoftDelete(map[Key]struct{}{target: {}}))
}

func TestParseType(t *testing.T) {
	for _, valid := range []string{"expense", "income"} {
		typ, err := ParseType(valid)
		require.NoError(t, err)
		assert.Equal(t, Type(valid), typ)
	}
	_, err := ParseType("transfer")
	assert.Error(t, err)
}
