package truelayer

import "time"

// tokenResponse is the auth server's reply to a code exchange or refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// authErrorBody is the auth server's error payload.
type authErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Account is one bank account or card reachable through a connection.
type Account struct {
	AccountID   string      `json:"account_id"`
	AccountType string      `json:"account_type"`
	DisplayName string      `json:"display_name"`
	Currency    string      `json:"currency"`
	Provider    AccountInfo `json:"provider"`
	Card        bool        `json:"-"`
}

// AccountInfo identifies the institution behind an account.
type AccountInfo struct {
	DisplayName string `json:"display_name"`
	ProviderID  string `json:"provider_id"`
}

// APITransaction is one raw provider transaction record.
type APITransaction struct {
	Timestamp       time.Time `json:"timestamp"`
	Description     string    `json:"description"`
	Amount          float64   `json:"amount"`
	TransactionType string    `json:"transaction_type"`
}

type accountsResponse struct {
	Results []Account `json:"results"`
}

type transactionsResponse struct {
	Results    []APITransaction `json:"results"`
	NextCursor string           `json:"next_cursor"`
}
