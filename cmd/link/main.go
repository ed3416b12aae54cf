// Command link exchanges a TrueLayer authorization code for tokens and
// stores the new bank connection. The code comes from the provider's
// browser consent flow; paste it here after approving access.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spendwell/spendwell/internal/adapters/truelayer"
	"github.com/spendwell/spendwell/internal/application/connect"
	"github.com/spendwell/spendwell/internal/infrastructure/config"
	"github.com/spendwell/spendwell/internal/infrastructure/connections"
	"github.com/spendwell/spendwell/internal/observability"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		code       = flag.String("code", "", "Authorization code from the provider consent flow")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = slog.LevelDebug.String()
	}
	logger := observability.NewLogger(cfg.Observability.Logging)

	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: link -code <authorization-code>")
		os.Exit(2)
	}

	client := truelayer.NewClient(truelayer.Config{
		ClientID:     cfg.GetAPIKey(cfg.TrueLayer.ClientID, "TRUELAYER_CLIENT_ID"),
		ClientSecret: cfg.GetAPIKey(cfg.TrueLayer.ClientSecret, "TRUELAYER_CLIENT_SECRET"),
		Environment:  cfg.TrueLayer.Environment,
		RedirectURI:  cfg.TrueLayer.RedirectURI,
		Timeout:      cfg.TrueLayer.Timeout(),
		RetryMax:     cfg.TrueLayer.RetryMax,
	})
	store := connections.NewStore(cfg.Storage.ConnectionsPath)
	manager := connect.NewManager(client, store, logger)

	conn, err := manager.Authorize(context.Background(), *code)
	if err != nil {
		logger.Error("Linking failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Linked %s (connection %s)\n", conn.ProviderName, conn.ID)
}
