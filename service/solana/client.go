package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/brojonat/tokenforge/service/tokentx"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client is the RPC-backed tokentx.Ledger. Every read goes to the node; it
// caches nothing and never retries.
type Client struct {
	rpc        RPCClient
	commitment rpc.CommitmentType
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // label for metrics and logs, see EndpointLabel
}

var _ tokentx.Ledger = (*Client)(nil)

// NewClient creates a ledger client. If metrics is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, endpoint string, commitment rpc.CommitmentType, m *metrics.Metrics, logger *slog.Logger) *Client {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:        rpcClient,
		commitment: commitment,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
	}
}

// LatestBlockhash fetches a fresh blockhash and its last valid block height.
func (c *Client) LatestBlockhash(ctx context.Context) (tokentx.Anchor, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	c.record(ctx, "GetLatestBlockhash", start, err)
	if err != nil {
		return tokentx.Anchor{}, c.unavailable(ctx, "get latest blockhash", err)
	}
	if out == nil || out.Value == nil {
		return tokentx.Anchor{}, fmt.Errorf("%w: empty latest blockhash response", tokentx.ErrLedgerUnavailable)
	}

	return tokentx.Anchor{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// GetAccountInfo returns nil, nil when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*tokentx.AccountInfo, error) {
	account, err := c.getAccount(ctx, address)
	if err != nil || account == nil {
		return nil, err
	}

	info := &tokentx.AccountInfo{
		Address:  address,
		Owner:    account.Owner,
		Lamports: account.Lamports,
	}
	if account.Data != nil {
		info.DataLen = len(account.Data.GetBinary())
	}
	return info, nil
}

// GetMintInfo reads and decodes a mint account owned by the token program.
func (c *Client) GetMintInfo(ctx context.Context, mint solana.PublicKey) (*tokentx.MintInfo, error) {
	account, err := c.getAccount(ctx, mint)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: no account at mint address %s", tokentx.ErrNotFound, mint)
	}
	if !account.Owner.Equals(solana.TokenProgramID) {
		return nil, fmt.Errorf("%w: account %s is owned by %s, not the token program", tokentx.ErrNotFound, mint, account.Owner)
	}

	var data []byte
	if account.Data != nil {
		data = account.Data.GetBinary()
	}
	return DecodeMint(mint, data)
}

// MinimumBalanceForRentExemption returns the rent-exempt minimum for dataSize bytes.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, dataSize, c.commitment)
	c.record(ctx, "GetMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, c.unavailable(ctx, "get minimum balance for rent exemption", err)
	}
	return lamports, nil
}

// DecodeMint decodes the 82-byte SPL token mint layout.
func DecodeMint(address solana.PublicKey, data []byte) (*tokentx.MintInfo, error) {
	if len(data) < tokentx.MintAccountSize {
		return nil, fmt.Errorf("%w: account %s holds %d bytes, too small for a mint", tokentx.ErrNotFound, address, len(data))
	}

	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data[:tokentx.MintAccountSize])); err != nil {
		return nil, fmt.Errorf("%w: decode mint %s: %v", tokentx.ErrNotFound, address, err)
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s is not initialized", tokentx.ErrNotFound, address)
	}

	return &tokentx.MintInfo{
		Address:         address,
		Decimals:        mint.Decimals,
		Supply:          mint.Supply,
		MintAuthority:   mint.MintAuthority,
		FreezeAuthority: mint.FreezeAuthority,
	}, nil
}

func (c *Client) getAccount(ctx context.Context, address solana.PublicKey) (*rpc.Account, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		c.record(ctx, "GetAccountInfo", start, nil)
		return nil, nil
	}
	c.record(ctx, "GetAccountInfo", start, err)
	if err != nil {
		return nil, c.unavailable(ctx, "get account info "+address.String(), err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}
	return out.Value, nil
}

func (c *Client) unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	c.logger.ErrorContext(ctx, "solana rpc call failed",
		"operation", op,
		"endpoint", c.endpoint,
		"error", err,
	)
	return fmt.Errorf("%w: %s: %v", tokentx.ErrLedgerUnavailable, op, err)
}

func (c *Client) record(ctx context.Context, method string, start time.Time, err error) {
	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.logger.DebugContext(ctx, "solana rpc call",
		"method", method,
		"status", status,
		"duration", duration,
	)
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration.Seconds())
	}
}
