// Command import merges a CSV export into the ledger file. Rows already
// present are skipped, so importing the same file twice is safe.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spendwell/spendwell/internal/application/backup"
	"github.com/spendwell/spendwell/internal/application/importer"
	"github.com/spendwell/spendwell/internal/infrastructure/config"
	"github.com/spendwell/spendwell/internal/infrastructure/ledgerstore"
	"github.com/spendwell/spendwell/internal/observability"
)

func main() {
	var (
		configFile  = flag.String("config", "config.yaml", "Configuration file path")
		file        = flag.String("file", "", "CSV file to import")
		dateCol     = flag.String("date-column", "date", "Header name of the date column")
		merchantCol = flag.String("merchant-column", "merchant", "Header name of the merchant column")
		amountCol   = flag.String("amount-column", "amount", "Header name of the amount column")
		typeCol     = flag.String("type-column", "type", "Header name of the optional type column")
		dateLayout  = flag.String("date-layout", "2006-01-02", "Go layout of dates in the file")
		source      = flag.String("source", "Legacy Import", "Source tag recorded on imported rows")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = slog.LevelDebug.String()
	}
	logger := observability.NewLogger(cfg.Observability.Logging)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: import -file <export.csv>")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("Failed to open input file", "error", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	// Snapshot the data files before touching the ledger; a bad import can
	// then be rolled back with the backup command.
	backups := backup.New(
		backup.Options{Dir: cfg.Storage.BackupDir},
		[]string{cfg.Storage.LedgerPath, cfg.Storage.CategoriesPath},
		logger,
	)
	if _, err := backups.Create(); err != nil {
		logger.Warn("Auto-backup failed", "error", err)
	}

	imp := importer.New(ledgerstore.New(cfg.Storage.LedgerPath), logger)
	result, err := imp.ImportCSV(f, importer.Options{
		DateColumn:     *dateCol,
		MerchantColumn: *merchantCol,
		AmountColumn:   *amountCol,
		TypeColumn:     *typeCol,
		DateLayout:     *dateLayout,
		Source:         *source,
	})
	if err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d rows, skipped %d duplicates\n", result.Added, result.Skipped)
	for _, rowErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "skipped bad row: %v\n", rowErr)
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}
