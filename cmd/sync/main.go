// Command sync pulls transactions from linked bank connections into the
// ledger file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spendwell/spendwell/internal/adapters/truelayer"
	"github.com/spendwell/spendwell/internal/application/connect"
	appsync "github.com/spendwell/spendwell/internal/application/sync"
	"github.com/spendwell/spendwell/internal/domain/categories"
	"github.com/spendwell/spendwell/internal/domain/categorizer"
	"github.com/spendwell/spendwell/internal/infrastructure/config"
	"github.com/spendwell/spendwell/internal/infrastructure/connections"
	"github.com/spendwell/spendwell/internal/infrastructure/ledgerstore"
	"github.com/spendwell/spendwell/internal/observability"
)

func main() {
	var (
		configFile   = flag.String("config", "config.yaml", "Configuration file path")
		connectionID = flag.String("connection", "", "Connection to sync (empty = all)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = slog.LevelDebug.String()
	}
	logger := observability.NewLogger(cfg.Observability.Logging)

	client := truelayer.NewClient(truelayer.Config{
		ClientID:     cfg.GetAPIKey(cfg.TrueLayer.ClientID, "TRUELAYER_CLIENT_ID"),
		ClientSecret: cfg.GetAPIKey(cfg.TrueLayer.ClientSecret, "TRUELAYER_CLIENT_SECRET"),
		Environment:  cfg.TrueLayer.Environment,
		RedirectURI:  cfg.TrueLayer.RedirectURI,
		Timeout:      cfg.TrueLayer.Timeout(),
		RetryMax:     cfg.TrueLayer.RetryMax,
	})
	connStore := connections.NewStore(cfg.Storage.ConnectionsPath)
	manager := connect.NewManager(client, connStore, logger)
	ledgerStore := ledgerstore.New(cfg.Storage.LedgerPath)

	orch := appsync.NewOrchestrator(
		appsync.NewBankData(client),
		manager,
		connStore,
		ledgerStore,
		appsync.Options{
			OverlapDays:  cfg.Sync.OverlapDays,
			LookbackDays: cfg.Sync.LookbackDays,
		},
		logger,
	)

	ctx := context.Background()
	if apiKey := cfg.GetAPIKey(cfg.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY"); apiKey != "" {
		model, err := categorizer.NewGeminiModel(ctx, apiKey, cfg.Gemini.Model)
		if err != nil {
			logger.Warn("Category suggestions disabled", "error", err)
		} else {
			suggester := categorizer.NewSuggester(model, categorizer.NewMemoryCache())
			orch.WithSuggestions(suggester, categories.NewStore(cfg.Storage.CategoriesPath))
		}
	}

	ids := []string{*connectionID}
	if *connectionID == "" {
		conns, err := connStore.List()
		if err != nil {
			logger.Error("Failed to list connections", "error", err)
			os.Exit(1)
		}
		if len(conns) == 0 {
			fmt.Println("No linked connections. Run the link command first.")
			return
		}
		ids = ids[:0]
		for _, c := range conns {
			ids = append(ids, c.ID)
		}
	}

	failed := false
	for _, id := range ids {
		result, err := orch.SyncConnection(ctx, id)
		if err != nil {
			failed = true
			switch {
			case errors.Is(err, connect.ErrReauthRequired):
				fmt.Printf("%s: bank consent expired, re-link this connection\n", id)
			case result != nil && result.Partial:
				fmt.Printf("%s (%s): stopped early after %d pages (%d added, %d skipped): %v\n",
					result.ConnectionID, result.Provider, result.Pages, result.Added, result.Skipped, err)
			default:
				fmt.Printf("%s: sync failed: %v\n", id, err)
			}
			continue
		}
		fmt.Printf("%s (%s): %d added, %d skipped across %d accounts\n",
			result.ConnectionID, result.Provider, result.Added, result.Skipped, result.Accounts)
		if len(result.Suggestions) > 0 {
			fmt.Printf("  suggested categories for %d new merchants\n", len(result.Suggestions))
		}
	}
	if failed {
		os.Exit(1)
	}
}
