package truelayer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spendwell/spendwell/internal/domain/ledger"
)

// Normalize converts raw provider records into ledger rows. The magnitude
// is the absolute amount; direction comes from the provider's DEBIT/CREDIT
// flag, falling back to the sign of the amount when the flag is missing.
// Records without a usable description are dropped here rather than left
// to fail schema validation later.
func Normalize(records []APITransaction, source string) []ledger.Transaction {
	rows := make([]ledger.Transaction, 0, len(records))
	for _, rec := range records {
		merchant := strings.TrimSpace(rec.Description)
		if merchant == "" {
			continue
		}

		typ := ledger.TypeExpense
		switch strings.ToUpper(rec.TransactionType) {
		case "DEBIT":
			typ = ledger.TypeExpense
		case "CREDIT":
			typ = ledger.TypeIncome
		default:
			if rec.Amount > 0 {
				typ = ledger.TypeIncome
			}
		}

		rows = append(rows, ledger.Transaction{
			Date:     ledger.NormalizeDate(rec.Timestamp),
			Merchant: merchant,
			Amount:   decimal.NewFromFloat(rec.Amount).Abs().Round(2),
			Type:     typ,
			Source:   source,
		})
	}
	return rows
}

// SourceTag builds the provenance tag recorded on every synced row, e.g.
// "TrueLayer - Lloyds - Current Account (GBP)".
func SourceTag(providerName string, account Account) string {
	return "TrueLayer - " + providerName + " - " + account.Label()
}
