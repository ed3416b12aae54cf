// Command connections lists linked bank connections and removes them.
// Removing a connection keeps the ledger rows it synced.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spendwell/spendwell/internal/infrastructure/config"
	"github.com/spendwell/spendwell/internal/infrastructure/connections"
	"github.com/spendwell/spendwell/internal/observability"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		remove     = flag.String("remove", "", "Connection ID to remove")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = slog.LevelDebug.String()
	}
	logger := observability.NewLogger(cfg.Observability.Logging)

	store := connections.NewStore(cfg.Storage.ConnectionsPath)

	if *remove != "" {
		if err := store.Remove(*remove); err != nil {
			logger.Error("Remove failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Removed connection %s\n", *remove)
		return
	}

	conns, err := store.List()
	if err != nil {
		logger.Error("Failed to list connections", "error", err)
		os.Exit(1)
	}
	if len(conns) == 0 {
		fmt.Println("No linked connections.")
		return
	}

	for _, c := range conns {
		lastSync := "never"
		if c.LastSyncedAt != nil {
			lastSync = c.LastSyncedAt.UTC().Format("2006-01-02 15:04")
		}
		status := "ok"
		if !c.Authenticated() {
			status = "re-link required"
		}
		fmt.Printf("%s  %-20s  last sync: %-17s  %s\n", c.ID, c.ProviderName, lastSync, status)
	}
}
