package truelayer

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// PageIter walks a cursor-paginated transaction window lazily, one page per
// Next call. The sequence is restartable: a failed sync simply builds a new
// iterator over the same window on the next run and lets the merge engine
// drop what was already committed.
type PageIter struct {
	client      *Client
	accessToken string
	baseURL     string
	params      url.Values
	cursor      string
	done        bool
}

// TransactionPages opens a page iterator over [from, to] for one account.
// The context is supplied per page on Next.
func (c *Client) TransactionPages(accessToken string, account Account, from, to time.Time) *PageIter {
	resource := "accounts"
	if account.Card {
		resource = "cards"
	}
	params := url.Values{
		"from": {from.Format("2006-01-02")},
		"to":   {to.Format("2006-01-02")},
	}
	return &PageIter{
		client:      c,
		accessToken: accessToken,
		baseURL:     fmt.Sprintf("%s/data/v1/%s/%s/transactions", c.apiBase, resource, account.AccountID),
		params:      params,
	}
}

// Next fetches the next page. It returns (nil, nil) when the window is
// exhausted. A page fetch error leaves the iterator resumable at the same
// cursor, so a transient failure can be retried without skipping data.
func (it *PageIter) Next(ctx context.Context) ([]APITransaction, error) {
	if it.done {
		return nil, nil
	}

	params := it.params
	if it.cursor != "" {
		params = url.Values{}
		for k, v := range it.params {
			params[k] = v
		}
		params.Set("cursor", it.cursor)
	}

	var page transactionsResponse
	if err := it.client.getJSON(ctx, it.baseURL+"?"+params.Encode(), it.accessToken, &page); err != nil {
		return nil, err
	}

	it.cursor = page.NextCursor
	if it.cursor == "" {
		it.done = true
	}
	if len(page.Results) == 0 {
		if it.done {
			return nil, nil
		}
		// An empty middle page is still progress; keep the caller looping.
		return []APITransaction{}, nil
	}
	return page.Results, nil
}

// Done reports whether the window is exhausted.
func (it *PageIter) Done() bool {
	return it.done
}
