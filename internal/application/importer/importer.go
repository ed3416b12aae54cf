// Package importer loads transactions from exported CSV files, such as a
// previous finance app's export, and merges them into the ledger through
// the same dedup path as bank syncs.
package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spendwell/spendwell/internal/domain/ledger"
	"github.com/spendwell/spendwell/internal/infrastructure/ledgerstore"
)

// Options maps the input file's columns onto ledger fields. Column names
// are matched against the header row case-insensitively.
type Options struct {
	DateColumn     string
	MerchantColumn string
	AmountColumn   string
	// TypeColumn is optional; without it (or for rows where it is blank)
	// the type comes from the amount's sign. Values are matched
	// case-insensitively, and a row with an unrecognized value is reported
	// in Result.Errors rather than silently re-typed.
	TypeColumn string
	DateLayout string
	Source     string
}

func (o Options) withDefaults() Options {
	if o.DateColumn == "" {
		o.DateColumn = "date"
	}
	if o.MerchantColumn == "" {
		o.MerchantColumn = "merchant"
	}
	if o.AmountColumn == "" {
		o.AmountColumn = "amount"
	}
	if o.TypeColumn == "" {
		o.TypeColumn = "type"
	}
	if o.DateLayout == "" {
		o.DateLayout = ledger.DateLayout
	}
	if o.Source == "" {
		o.Source = "Legacy Import"
	}
	return o
}

// Result holds the outcome of one import.
type Result struct {
	Added   int
	Skipped int
	// Errors lists rows that could not be parsed. The rest of the file is
	// still imported.
	Errors []error
}

// LedgerStore is the persistence surface the importer needs. Merge commits
// the batch as one load-merge-save step under the store's lock, so an
// import never clobbers rows a concurrent sync committed.
type LedgerStore interface {
	Merge(batch []ledger.Transaction) (ledger.MergeReport, []ledgerstore.SchemaWarning, error)
}

// Importer merges CSV exports into the ledger.
type Importer struct {
	store  LedgerStore
	logger *slog.Logger
}

// New creates a new importer
func New(store LedgerStore, logger *slog.Logger) *Importer {
	return &Importer{store: store, logger: logger}
}

// ImportCSV reads the export, parses every row it can, and commits the
// whole batch in one merge and save. Duplicates of rows already in the
// ledger are skipped, so re-importing the same file is harmless.
func (i *Importer) ImportCSV(r io.Reader, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	result := &Result{}

	rows, err := i.parse(r, opts, result)
	if err != nil {
		return nil, err
	}

	report, warnings, err := i.store.Merge(rows)
	if err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	for _, w := range warnings {
		i.logger.Warn("Ledger schema migrated", "migration", w.Migration, "rows", w.Rows)
	}

	result.Added = report.Added
	result.Skipped = report.Skipped
	i.logger.Info("Import complete",
		"added", result.Added,
		"skipped", result.Skipped,
		"bad_rows", len(result.Errors),
	)
	return result, nil
}

func (i *Importer) parse(r io.Reader, opts Options, result *Result) ([]ledger.Transaction, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err == io.EOF {
		return nil, errors.New("empty input file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx := columnIndex(header, opts.DateColumn)
	merchantIdx := columnIndex(header, opts.MerchantColumn)
	amountIdx := columnIndex(header, opts.AmountColumn)
	typeIdx := columnIndex(header, opts.TypeColumn)
	if dateIdx < 0 || merchantIdx < 0 || amountIdx < 0 {
		return nil, fmt.Errorf("header missing required columns %q, %q, %q",
			opts.DateColumn, opts.MerchantColumn, opts.AmountColumn)
	}

	var rows []ledger.Transaction
	line := 1
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		tx, err := parseRow(rec, dateIdx, merchantIdx, amountIdx, typeIdx, opts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		rows = append(rows, tx)
	}
	return rows, nil
}

func parseRow(rec []string, dateIdx, merchantIdx, amountIdx, typeIdx int, opts Options) (ledger.Transaction, error) {
	need := dateIdx
	for _, idx := range []int{merchantIdx, amountIdx} {
		if idx > need {
			need = idx
		}
	}
	if len(rec) <= need {
		return ledger.Transaction{}, fmt.Errorf("expected at least %d columns, got %d", need+1, len(rec))
	}

	date, err := time.Parse(opts.DateLayout, strings.TrimSpace(rec[dateIdx]))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("date: %w", err)
	}

	merchant := strings.TrimSpace(rec[merchantIdx])
	if merchant == "" {
		return ledger.Transaction{}, errors.New("blank merchant")
	}

	amount, negative, err := parseAmount(rec[amountIdx])
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("amount: %w", err)
	}

	typ := ledger.TypeExpense
	if !negative && amount.Sign() > 0 {
		typ = ledger.TypeIncome
	}
	if typeIdx >= 0 && typeIdx < len(rec) {
		if raw := strings.TrimSpace(rec[typeIdx]); raw != "" {
			explicit, err := ledger.ParseType(strings.ToLower(raw))
			if err != nil {
				return ledger.Transaction{}, fmt.Errorf("type: %w", err)
			}
			typ = explicit
		}
	}

	return ledger.Transaction{
		Date:     ledger.NormalizeDate(date),
		Merchant: merchant,
		Amount:   amount.Abs().Round(2),
		Type:     typ,
		Source:   opts.Source,
	}, nil
}

// parseAmount cleans a formatted money string: currency symbols and
// thousands separators are dropped, and accounting-style parentheses mean
// negative. Returns the cleaned value and whether it was negative.
func parseAmount(s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, sym := range []string{"£", "$", "€", ",", " "} {
		s = strings.ReplaceAll(s, sym, "")
	}
	if s == "" {
		return decimal.Decimal{}, false, errors.New("blank amount")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	if amount.Sign() < 0 {
		negative = true
	}
	return amount, negative, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
