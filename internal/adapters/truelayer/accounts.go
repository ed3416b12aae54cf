package truelayer

import (
	"context"
	"fmt"
	"strings"
)

// Accounts lists every bank account and card visible to the connection.
// A failed card fetch is tolerated: card scope is optional on many banks
// and must not block syncing the current accounts.
func (c *Client) Accounts(ctx context.Context, accessToken string) ([]Account, error) {
	var accounts accountsResponse
	if err := c.getJSON(ctx, c.apiBase+"/data/v1/accounts", accessToken, &accounts); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var cards accountsResponse
	if err := c.getJSON(ctx, c.apiBase+"/data/v1/cards", accessToken, &cards); err == nil {
		for i := range cards.Results {
			cards.Results[i].Card = true
		}
		accounts.Results = append(accounts.Results, cards.Results...)
	}

	return accounts.Results, nil
}

// ProviderName derives a human-readable institution name from the first
// account, cleaning up raw provider IDs like "ob-lloyds".
func ProviderName(accounts []Account) string {
	if len(accounts) == 0 {
		return "Unknown Bank"
	}
	p := accounts[0].Provider
	name := p.DisplayName
	if name == "" {
		name = p.ProviderID
	}
	if name == "" {
		return "Unknown Bank"
	}
	for _, prefix := range []string{"ob-", "oauth-", "xs2a-"} {
		if strings.HasPrefix(name, prefix) {
			return titleCase(strings.TrimPrefix(name, prefix))
		}
	}
	return name
}

// titleCase capitalizes each dash/space-separated word of an ASCII
// provider ID ("lloyds-bank" -> "Lloyds Bank").
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Label names an account for source tags, appending the currency so
// multi-currency accounts (e.g. Revolut) stay distinguishable.
func (a Account) Label() string {
	name := a.DisplayName
	if name == "" {
		name = a.AccountType
	}
	if name == "" {
		name = "Account"
	}
	if a.Currency != "" {
		return fmt.Sprintf("%s (%s)", name, a.Currency)
	}
	return name
}
