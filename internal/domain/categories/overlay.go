// Package categories maintains the merchant→category overlay. The overlay
// is deliberately independent of transaction identity: it may be rewritten
// freely without ever changing a ledger row or its dedup key, and it is
// consulted only when rows are read out for display or analysis.
package categories

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/spendwell/spendwell/internal/domain/ledger"
)

// Overlay maps a merchant name to a category string.
type Overlay map[string]string

// Lookup returns the category for a merchant, if one is set.
func (o Overlay) Lookup(merchant string) (string, bool) {
	cat, ok := o[strings.TrimSpace(merchant)]
	return cat, ok
}

// Set assigns a category to a merchant, replacing any previous value.
func (o Overlay) Set(merchant, category string) {
	o[strings.TrimSpace(merchant)] = category
}

// Delete removes a merchant's mapping.
func (o Overlay) Delete(merchant string) {
	delete(o, strings.TrimSpace(merchant))
}

// Merchants returns the mapped merchant names, sorted.
func (o Overlay) Merchants() []string {
	out := make([]string, 0, len(o))
	for m := range o {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Uncategorized returns the merchants among rows that have no mapping.
// Each merchant appears once.
func (o Overlay) Uncategorized(rows []ledger.Transaction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		m := strings.TrimSpace(r.Merchant)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		if _, ok := o[m]; !ok {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Categorize resolves the category for one row at read time. Falls back to
// the nearest known merchant within maxDistance edits, so a bank feed's
// "ACME STORE 0042" still lands on the category the user set for
// "Acme Store". Returns "" when nothing matches.
func (o Overlay) Categorize(row ledger.Transaction, maxDistance int) string {
	if cat, ok := o.Lookup(row.Merchant); ok {
		return cat
	}
	if merchant, ok := o.nearest(row.Merchant, maxDistance); ok {
		return o[merchant]
	}
	return ""
}

// nearest finds the known merchant with the smallest edit distance to name,
// case-insensitively, if any is within maxDistance.
func (o Overlay) nearest(name string, maxDistance int) (string, bool) {
	if maxDistance <= 0 || len(o) == 0 {
		return "", false
	}
	needle := strings.ToUpper(strings.TrimSpace(name))
	best := maxDistance + 1
	var bestMerchant string
	for _, m := range o.Merchants() {
		dist := levenshtein.ComputeDistance(needle, strings.ToUpper(m))
		if dist < best {
			best = dist
			bestMerchant = m
		}
	}
	if best > maxDistance {
		return "", false
	}
	return bestMerchant, true
}
