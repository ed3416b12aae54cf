// Package ledger defines the transaction record, its identity key, and the
// pure merge engine every ingestion path flows through.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a transaction as money out or money in.
type Type string

const (
	TypeExpense Type = "expense"
	TypeIncome  Type = "income"
)

// ParseType validates a transaction type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeExpense, TypeIncome:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// DateLayout is the calendar-date format used on disk and in keys.
const DateLayout = "2006-01-02"

// Transaction is the ledger's unit of record. Amounts are non-negative
// magnitudes; direction lives in Type. Source records provenance only and
// is not part of identity.
type Transaction struct {
	Date     time.Time
	Merchant string
	Amount   decimal.Decimal
	Type     Type
	Source   string
	Deleted  bool
}

// Key identifies an economic event. Two rows with equal keys are the same
// transaction regardless of Type, Source, or Deleted.
type Key struct {
	Date     string
	Merchant string
	Amount   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Date, k.Merchant, k.Amount)
}

// Key returns the dedup key for the transaction. The merchant is trimmed
// and the amount normalized to two decimal places so that key equality
// never depends on input formatting.
func (t Transaction) Key() Key {
	return Key{
		Date:     t.Date.Format(DateLayout),
		Merchant: strings.TrimSpace(t.Merchant),
		Amount:   t.Amount.Round(2).StringFixed(2),
	}
}

// NormalizeDate truncates a timestamp to its calendar date in UTC.
func NormalizeDate(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize returns a copy with trimmed merchant, truncated date and a
// two-decimal amount. Ingestion paths call this before merging.
func (t Transaction) Normalize() Transaction {
	t.Date = NormalizeDate(t.Date)
	t.Merchant = strings.TrimSpace(t.Merchant)
	t.Amount = t.Amount.Round(2)
	return t
}
