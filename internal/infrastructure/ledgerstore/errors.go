package ledgerstore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCorruptStore marks a ledger file that cannot be read or parsed at all.
// This is fatal: the store never auto-repairs by discarding data, so the
// caller must surface it for manual intervention.
var ErrCorruptStore = errors.New("ledger store is corrupt")

// ErrStorageWrite marks a failed Save. The atomic-rename discipline
// guarantees the previous ledger file is still intact when this is returned.
var ErrStorageWrite = errors.New("ledger store write failed")

// RowError describes one invalid row found during schema validation.
// Row numbers are 1-based data rows (the header is row 0).
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ValidationError reports every invalid row in a load. The whole load fails
// rather than silently dropping the offenders.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = r.String()
	}
	return fmt.Sprintf("ledger validation failed: %s", strings.Join(parts, "; "))
}
