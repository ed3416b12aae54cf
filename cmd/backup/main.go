// Command backup snapshots the ledger and category files and restores
// earlier snapshots. Without flags it takes a new snapshot.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spendwell/spendwell/internal/application/backup"
	"github.com/spendwell/spendwell/internal/infrastructure/config"
	"github.com/spendwell/spendwell/internal/observability"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		list       = flag.Bool("list", false, "List retained snapshots")
		restore    = flag.String("restore", "", "Snapshot name to restore")
		keep       = flag.Int("keep", 5, "How many snapshots to retain")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = slog.LevelDebug.String()
	}
	logger := observability.NewLogger(cfg.Observability.Logging)

	svc := backup.New(
		backup.Options{Dir: cfg.Storage.BackupDir, Keep: *keep},
		[]string{cfg.Storage.LedgerPath, cfg.Storage.CategoriesPath},
		logger,
	)

	switch {
	case *list:
		snaps, err := svc.List()
		if err != nil {
			logger.Error("Failed to list backups", "error", err)
			os.Exit(1)
		}
		if len(snaps) == 0 {
			fmt.Println("No backups.")
			return
		}
		for _, s := range snaps {
			fmt.Printf("%s  %s  %d file(s)\n", s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Files)
		}

	case *restore != "":
		if err := svc.Restore(*restore); err != nil {
			logger.Error("Restore failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Restored snapshot %s\n", *restore)

	default:
		name, err := svc.Create()
		if err != nil {
			logger.Error("Backup failed", "error", err)
			os.Exit(1)
		}
		if name == "" {
			fmt.Println("Nothing to back up yet.")
			return
		}
		fmt.Printf("Created snapshot %s\n", name)
	}
}
