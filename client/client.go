package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Transaction is a built, partially signed transaction returned by the
// server. The caller adds the missing signatures and broadcasts it.
type Transaction struct {
	EncodedTransaction   string   `json:"encodedTransaction"`
	MintPublicKey        string   `json:"mintPublicKey,omitempty"`
	Encoding             string   `json:"encoding"`
	FeePayer             string   `json:"feePayer"`
	Blockhash            string   `json:"blockhash"`
	LastValidBlockHeight uint64   `json:"lastValidBlockHeight"`
	MissingSigners       []string `json:"missingSigners"`
	CreatedAccounts      []string `json:"createdAccounts,omitempty"`
}

// Build is a recorded build as listed by the server.
type Build struct {
	ID                   int64     `json:"id"`
	Operation            string    `json:"operation"`
	Network              string    `json:"network"`
	Payer                string    `json:"payer"`
	Mint                 string    `json:"mint"`
	Blockhash            string    `json:"blockhash"`
	LastValidBlockHeight int64     `json:"last_valid_block_height"`
	InstructionCount     int32     `json:"instruction_count"`
	CreatedAccounts      []string  `json:"created_accounts"`
	Encoding             string    `json:"encoding"`
	CreatedAt            time.Time `json:"created_at"`
}

// BuildList is one page of build records.
type BuildList struct {
	Builds []Build `json:"builds"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ListBuildsParams filters the build listing. Zero values are omitted.
type ListBuildsParams struct {
	Payer     string
	Operation string
	Mint      string
	Limit     int
	Offset    int
}

// APIError is returned when the server answers with a non-success status.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed: %s", e.Message)
}

// Client is the HTTP client for the tokenforge service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new tokenforge client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateToken asks the server for a transaction creating a new mint.
func (c *Client) CreateToken(ctx context.Context, payer string, decimals int) (*Transaction, error) {
	return c.build(ctx, "create-token", map[string]interface{}{
		"payer":    payer,
		"decimals": decimals,
	})
}

// MintToken asks the server for a transaction minting amount to recipient.
// The amount is a decimal string such as "2.5".
func (c *Client) MintToken(ctx context.Context, payer, mint, recipient, amount string) (*Transaction, error) {
	return c.build(ctx, "mint-token", map[string]interface{}{
		"payer":            payer,
		"mintAddress":      mint,
		"recipientAddress": recipient,
		"amount":           amount,
	})
}

// TransferToken asks the server for a transaction moving amount from one
// wallet's associated account to another's.
func (c *Client) TransferToken(ctx context.Context, payer, from, to, mint, amount string) (*Transaction, error) {
	return c.build(ctx, "transfer-token", map[string]interface{}{
		"payer":       payer,
		"fromAddress": from,
		"toAddress":   to,
		"mintAddress": mint,
		"amount":      amount,
	})
}

// BurnToken asks the server for a transaction burning amount from account's
// associated account.
func (c *Client) BurnToken(ctx context.Context, payer, account, mint, amount string) (*Transaction, error) {
	return c.build(ctx, "burn-token", map[string]interface{}{
		"payer":          payer,
		"accountAddress": account,
		"mintAddress":    mint,
		"amount":         amount,
	})
}

// DelegateToken asks the server for a transaction approving delegate to
// spend up to amount from owner's associated account.
func (c *Client) DelegateToken(ctx context.Context, payer, owner, delegate, mint, amount string) (*Transaction, error) {
	return c.build(ctx, "delegate-token", map[string]interface{}{
		"payer":           payer,
		"ownerAddress":    owner,
		"delegateAddress": delegate,
		"mintAddress":     mint,
		"amount":          amount,
	})
}

func (c *Client) build(ctx context.Context, route string, params map[string]interface{}) (*Transaction, error) {
	body, err := json.Marshal(map[string]interface{}{"params": params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/"+route, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result struct {
		Data Transaction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("transaction built", "route", route, "blockhash", result.Data.Blockhash)
	return &result.Data, nil
}

// ListBuilds retrieves recorded builds, newest first.
func (c *Client) ListBuilds(ctx context.Context, params ListBuildsParams) (*BuildList, error) {
	q := url.Values{}
	if params.Payer != "" {
		q.Set("payer", params.Payer)
	}
	if params.Operation != "" {
		q.Set("operation", params.Operation)
	}
	if params.Mint != "" {
		q.Set("mint", params.Mint)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	u := c.baseURL + "/api/v1/builds"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var list BuildList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &list, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Kind:       errResp.Kind,
		Message:    errResp.Error,
	}
}
