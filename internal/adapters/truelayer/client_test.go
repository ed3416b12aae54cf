package truelayer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://console.truelayer.com/redirect-page",
		RetryMax:     1,
		AuthBaseURL:  srv.URL,
		APIBaseURL:   srv.URL,
	})
}

func TestExchangeCode(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`))
	}))

	token, err := client.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 10*time.Second)
}

func TestExchangeCode_InvalidGrant(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))

	_, err := client.ExchangeCode(context.Background(), "stale-code")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.True(t, authErr.ReauthRequired())
}

func TestRefresh_KeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"at-2","expires_in":3600}`))
	}))

	token, err := client.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-2", token.AccessToken)
	assert.Equal(t, "rt-old", token.RefreshToken)
}

func TestRefresh_RotatedRefreshToken(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-new","expires_in":3600}`))
	}))

	token, err := client.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "rt-new", token.RefreshToken)
}

func TestGetJSON_RateLimitSurfacesAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Accounts(context.Background(), "at")
	require.ErrorIs(t, err, ErrRateLimited)
	// One retry was configured, so the endpoint is hit twice.
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_ExpiredTokenIsAuthError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Accounts(context.Background(), "at-expired")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.False(t, authErr.ReauthRequired())
}

func TestAccounts_CardFetchFailureIsTolerated(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/v1/accounts":
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"results":[{"account_id":"acc-1","display_name":"Current Account","currency":"GBP"}]}`))
		case "/data/v1/cards":
			w.WriteHeader(http.StatusForbidden)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	accounts, err := client.Accounts(context.Background(), "at")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].AccountID)
	assert.False(t, accounts[0].Card)
}

func TestAccounts_IncludesCards(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/v1/accounts":
			_, _ = w.Write([]byte(`{"results":[{"account_id":"acc-1","display_name":"Current Account"}]}`))
		case "/data/v1/cards":
			_, _ = w.Write([]byte(`{"results":[{"account_id":"card-1","display_name":"Credit Card"}]}`))
		}
	}))

	accounts, err := client.Accounts(context.Background(), "at")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.False(t, accounts[0].Card)
	assert.True(t, accounts[1].Card)
}

func TestPageIter_WalksCursors(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/v1/accounts/acc-1/transactions", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-01-31", r.URL.Query().Get("to"))
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`{"results":[{"description":"COFFEE","amount":-3.5}],"next_cursor":"c2"}`))
		case "c2":
			_, _ = w.Write([]byte(`{"results":[],"next_cursor":"c3"}`))
		case "c3":
			_, _ = w.Write([]byte(`{"results":[{"description":"RENT","amount":-900}]}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	iter := client.TransactionPages("at", Account{AccountID: "acc-1"}, from, to)

	page1, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page1, 1)
	assert.Equal(t, "COFFEE", page1[0].Description)
	assert.False(t, iter.Done())

	// Empty middle page keeps the iteration alive.
	page2, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, page2)
	assert.Empty(t, page2)
	assert.False(t, iter.Done())

	page3, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.True(t, iter.Done())

	end, err := iter.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, end)
}

func TestPageIter_FailedPageIsResumable(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"results":[{"description":"ONE","amount":-1}],"next_cursor":"c2"}`))
			return
		}
		if fail.Load() {
			fail.Store(false)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"description":"TWO","amount":-2}]}`))
	}))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iter := client.TransactionPages("at", Account{AccountID: "acc-1", Card: true}, from, from.AddDate(0, 1, 0))

	_, err := iter.Next(context.Background())
	require.NoError(t, err)

	// The retryable client itself recovers from a single 5xx, so the second
	// page succeeds despite the first attempt failing.
	page, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "TWO", page[0].Description)
}

func TestPageIter_UsesCardResource(t *testing.T) {
	var path string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iter := client.TransactionPages("at", Account{AccountID: "card-9", Card: true}, from, from)
	_, err := iter.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/data/v1/cards/card-9/transactions", path)
}

func TestProviderName(t *testing.T) {
	cases := []struct {
		name     string
		accounts []Account
		want     string
	}{
		{"display name wins", []Account{{Provider: AccountInfo{DisplayName: "Lloyds Bank", ProviderID: "ob-lloyds"}}}, "Lloyds Bank"},
		{"prefixed id is cleaned", []Account{{Provider: AccountInfo{ProviderID: "ob-lloyds-bank"}}}, "Lloyds Bank"},
		{"oauth prefix", []Account{{Provider: AccountInfo{ProviderID: "oauth-starling"}}}, "Starling"},
		{"plain id kept verbatim", []Account{{Provider: AccountInfo{ProviderID: "Monzo"}}}, "Monzo"},
		{"no accounts", nil, "Unknown Bank"},
		{"empty provider", []Account{{}}, "Unknown Bank"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProviderName(tc.accounts))
		})
	}
}

func TestAccountLabel(t *testing.T) {
	assert.Equal(t, "Current Account (GBP)", Account{DisplayName: "Current Account", Currency: "GBP"}.Label())
	assert.Equal(t, "TRANSACTION (EUR)", Account{AccountType: "TRANSACTION", Currency: "EUR"}.Label())
	assert.Equal(t, "Account", Account{}.Label())
}

func TestAuthErrorUnwrapsThroughWrapping(t *testing.T) {
	err := &AuthError{Status: 403, Code: "sca_exceeded", Detail: "consent expired"}
	wrapped := errors.Join(errors.New("sync connection"), err)
	var authErr *AuthError
	require.ErrorAs(t, wrapped, &authErr)
	assert.True(t, authErr.ReauthRequired())
}
