// Package ledgerstore persists the transaction ledger as a plain columnar
// CSV file with atomic writes. The store is the single owner of the
// ledger's on-disk representation; all writers in the process go through
// one Store handle whose mutex serializes every commit, holding it across
// the whole load-modify-save of Merge and SoftDelete.
package ledgerstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spendwell/spendwell/internal/domain/ledger"
	"github.com/spendwell/spendwell/internal/infrastructure/atomicfile"
)

const (
	colDate     = "date"
	colMerchant = "merchant"
	colAmount   = "amount"
	colType     = "type"
	colSource   = "source"
	colDeleted  = "deleted"

	filePerm = 0o600
)

// saveColumns is the canonical column order written by Save.
var saveColumns = []string{colDate, colMerchant, colAmount, colType, colSource, colDeleted}

// Store is an explicit handle on one ledger file. Construct it once per
// process and pass it to every component that needs the ledger.
type Store struct {
	path string

	// mu serializes all writes regardless of which caller triggered them,
	// keeping the file single-writer under concurrent syncs.
	mu sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the ledger file, applies pending schema migrations, and
// validates every row. A missing file yields an empty dataset. An
// unreadable or structurally malformed file fails with ErrCorruptStore and
// is never auto-repaired; invalid row values fail with *ValidationError and
// nothing is dropped.
func (s *Store) Load() (*ledger.Dataset, []SchemaWarning, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return ledger.NewDataset(nil), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrCorruptStore, s.path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := decodeTable(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	warnings := migrate(t)

	rows, err := decodeRows(t)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewDataset(rows), warnings, nil
}

// Save writes the full dataset back atomically: temp file, full write,
// fsync, rename over the previous file. On failure the previous ledger
// state remains intact and the error wraps ErrStorageWrite.
func (s *Store) Save(ds *ledger.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ds)
}

func (s *Store) saveLocked(ds *ledger.Dataset) error {
	err := atomicfile.Write(s.path, filePerm, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(saveColumns); err != nil {
			return err
		}
		for _, row := range ds.Rows() {
			record := []string{
				row.Date.Format(ledger.DateLayout),
				row.Merchant,
				row.Amount.Round(2).StringFixed(2),
				string(row.Type),
				row.Source,
				fmt.Sprintf("%t", row.Deleted),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

// Merge folds a batch into the ledger as one load-merge-save step under
// the store lock. The on-disk dataset is re-read inside the critical
// section, so two callers committing batches concurrently can never
// overwrite each other's rows; callers must not carry their own snapshot
// across commits. A merge that adds nothing and needs no migration leaves
// the file untouched.
func (s *Store) Merge(batch []ledger.Transaction) (ledger.MergeReport, []SchemaWarning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, warnings, err := s.Load()
	if err != nil {
		return ledger.MergeReport{}, nil, err
	}
	merged, report := ledger.Merge(ds, batch)
	if report.Added == 0 && len(warnings) == 0 {
		return report, warnings, nil
	}
	if err := s.saveLocked(merged); err != nil {
		return ledger.MergeReport{}, warnings, err
	}
	return report, warnings, nil
}

// SoftDelete flips deleted=true on the active rows matching keys and
// persists the result, returning how many rows were flipped. Rows are never
// physically removed; the store offers no purge.
func (s *Store) SoftDelete(keys map[ledger.Key]struct{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, _, err := s.Load()
	if err != nil {
		return 0, err
	}
	count := ds.SoftDelete(keys)
	if count == 0 {
		return 0, nil
	}
	if err := s.saveLocked(ds); err != nil {
		return 0, err
	}
	return count, nil
}

// decodeTable reads the raw CSV into a header + records table.
func decodeTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // field counts are checked against the header below

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse ledger csv: %v", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("ledger file has no header")
	}

	header := make([]string, len(all[0]))
	for i, c := range all[0] {
		header[i] = strings.ToLower(strings.TrimSpace(c))
	}
	for _, required := range []string{colDate, colMerchant, colAmount} {
		found := false
		for _, c := range header {
			if c == required {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("ledger file missing required column %q", required)
		}
	}

	records := all[1:]
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("ledger row %d has %d fields, header has %d", i+1, len(rec), len(header))
		}
	}
	return &table{columns: header, records: records}, nil
}

// decodeRows converts a migrated table into ledger rows, collecting every
// invalid row into a single *ValidationError.
func decodeRows(t *table) ([]ledger.Transaction, error) {
	dateIdx := t.columnIndex(colDate)
	merchantIdx := t.columnIndex(colMerchant)
	amountIdx := t.columnIndex(colAmount)
	typeIdx := t.columnIndex(colType)
	sourceIdx := t.columnIndex(colSource)
	deletedIdx := t.columnIndex(colDeleted)

	rows := make([]ledger.Transaction, 0, len(t.records))
	var bad []RowError
	for i, rec := range t.records {
		rowNum := i + 1
		tx, reason := decodeRow(rec, dateIdx, merchantIdx, amountIdx, typeIdx, sourceIdx, deletedIdx)
		if reason != "" {
			bad = append(bad, RowError{Row: rowNum, Reason: reason})
			continue
		}
		rows = append(rows, tx)
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Rows: bad}
	}
	return rows, nil
}

func decodeRow(rec []string, dateIdx, merchantIdx, amountIdx, typeIdx, sourceIdx, deletedIdx int) (ledger.Transaction, string) {
	var tx ledger.Transaction

	date, err := time.Parse(ledger.DateLayout, strings.TrimSpace(rec[dateIdx]))
	if err != nil {
		return tx, fmt.Sprintf("invalid date %q", rec[dateIdx])
	}

	merchant := strings.TrimSpace(rec[merchantIdx])
	if merchant == "" {
		return tx, "empty merchant"
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(rec[amountIdx]))
	if err != nil {
		return tx, fmt.Sprintf("invalid amount %q", rec[amountIdx])
	}
	if amount.IsNegative() {
		return tx, fmt.Sprintf("negative amount %q", rec[amountIdx])
	}

	typ, err := ledger.ParseType(strings.TrimSpace(rec[typeIdx]))
	if err != nil {
		return tx, fmt.Sprintf("invalid type %q", rec[typeIdx])
	}

	deleted := strings.EqualFold(strings.TrimSpace(rec[deletedIdx]), "true")

	tx = ledger.Transaction{
		Date:     date,
		Merchant: merchant,
		Amount:   amount,
		Type:     typ,
		Source:   rec[sourceIdx],
		Deleted:  deleted,
	}
	return tx, ""
}
