package truelayer

import (
	"context"
	"net/url"
	"time"
)

// Token is an access/refresh token pair with its computed expiry. Values
// are opaque; nothing outside the connection manager should look inside.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ExchangeCode trades an authorization code (captured by the external
// browser flow) for a token pair. Any non-2xx response is an *AuthError.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
		"code":          {code},
	}
	resp, err := c.postForm(ctx, "/connect/token", form)
	if err != nil {
		return nil, err
	}
	return c.token(resp, ""), nil
}

// Refresh trades a refresh token for a fresh access token. The provider
// may rotate the refresh token; when it does not, the old one stays valid
// and is carried forward.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}
	resp, err := c.postForm(ctx, "/connect/token", form)
	if err != nil {
		return nil, err
	}
	return c.token(resp, refreshToken), nil
}

func (c *Client) token(resp *tokenResponse, previousRefresh string) *Token {
	expiresIn := resp.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return &Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}
