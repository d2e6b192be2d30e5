// Package ton verifies manual-rail payment evidence against a TON
// blockchain indexer.  The engine never signs or broadcasts anything;
// it only checks that a user-submitted transaction hash corresponds to
// a transfer of at least the expected amount into the service wallet.
package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client queries a toncenter-compatible indexer HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an indexer client.  apiKey may be empty for
// unauthenticated endpoints.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// transaction is the subset of the indexer's transaction document the
// verifier reads.
type transaction struct {
	Hash  string `json:"hash"`
	InMsg struct {
		Destination string `json:"destination"`
		Value       string `json:"value"`
	} `json:"in_msg"`
}

type transactionsResponse struct {
	OK     bool          `json:"ok"`
	Result []transaction `json:"result"`
}

// VerifyTransfer reports whether the transaction identified by txHash
// delivered at least minAmount nanotons to destination.  A missing
// transaction or a short transfer verifies false without error; errors
// are reserved for transport and decoding failures.
func (c *Client) VerifyTransfer(ctx context.Context, txHash, destination string, minAmount uint64) (bool, error) {
	q := url.Values{}
	q.Set("hash", txHash)
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getTransactions?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("create indexer request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("call indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, string(body))
	}

	var out transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode indexer response: %w", err)
	}
	if !out.OK {
		return false, nil
	}
	for _, tx := range out.Result {
		if tx.Hash != txHash {
			continue
		}
		if tx.InMsg.Destination != destination {
			continue
		}
		var value uint64
		if _, err := fmt.Sscanf(tx.InMsg.Value, "%d", &value); err != nil {
			continue
		}
		if value >= minAmount {
			return true, nil
		}
	}
	return false, nil
}
