package solana

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is the subset of the Solana JSON-RPC API the ledger needs.
// It exists so tests can run without a node.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetAccountInfoWithOpts(
		ctx context.Context,
		account solana.PublicKey,
		opts *rpc.GetAccountInfoOpts,
	) (*rpc.GetAccountInfoResult, error)

	GetMinimumBalanceForRentExemption(
		ctx context.Context,
		dataSize uint64,
		commitment rpc.CommitmentType,
	) (uint64, error)
}

// realRPCClient adapts the solana-go RPC client to RPCClient.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates an RPCClient for rpcURL whose HTTP requests give up
// after timeout. API keys for premium endpoints go in the URL, e.g.
// https://mainnet.helius-rpc.com/?api-key=YOUR-KEY.
func NewRPCClient(rpcURL string, timeout time.Duration) RPCClient {
	transport := jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &realRPCClient{
		client: rpc.NewWithCustomRPCClient(transport),
	}
}

func (r *realRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	return r.client.GetLatestBlockhash(ctx, commitment)
}

func (r *realRPCClient) GetAccountInfoWithOpts(
	ctx context.Context,
	account solana.PublicKey,
	opts *rpc.GetAccountInfoOpts,
) (*rpc.GetAccountInfoResult, error) {
	return r.client.GetAccountInfoWithOpts(ctx, account, opts)
}

func (r *realRPCClient) GetMinimumBalanceForRentExemption(
	ctx context.Context,
	dataSize uint64,
	commitment rpc.CommitmentType,
) (uint64, error) {
	return r.client.GetMinimumBalanceForRentExemption(ctx, dataSize, commitment)
}

// Network names accepted by EndpointForNetwork.
const (
	NetworkDevnet   = "devnet"
	NetworkTestnet  = "testnet"
	NetworkMainnet  = "mainnet"
	NetworkLocalnet = "localnet"
)

// EndpointForNetwork returns the public RPC endpoint of a cluster.
func EndpointForNetwork(network string) (string, error) {
	switch strings.ToLower(network) {
	case NetworkDevnet:
		return rpc.DevNet_RPC, nil
	case NetworkTestnet:
		return rpc.TestNet_RPC, nil
	case NetworkMainnet, "mainnet-beta":
		return rpc.MainNetBeta_RPC, nil
	case NetworkLocalnet:
		return rpc.LocalNet_RPC, nil
	default:
		return "", fmt.Errorf("unknown solana network %q", network)
	}
}

// ParseCommitment validates a commitment level name.
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(strings.ToLower(s)); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	default:
		return "", fmt.Errorf("unknown commitment %q: must be processed, confirmed or finalized", s)
	}
}

// SelectRandomEndpoint picks one endpoint to spread load across providers.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// EndpointLabel reduces an RPC URL to a short name that is safe to use as a
// metrics label or log field. Paths and query strings, which carry API keys
// for premium providers, never appear in the result.
//
//   - "https://api.devnet.solana.com" -> "devnet"
//   - "https://mainnet.helius-rpc.com/?api-key=..." -> "helius"
//   - "https://some-endpoint.quiknode.pro/<token>/" -> "quiknode"
func EndpointLabel(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		return "unknown"
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "unknown"
	}

	for _, provider := range []string{"helius", "alchemy", "triton", "rpcpool", "ankr"} {
		if strings.Contains(host, provider) {
			return provider
		}
	}
	if strings.Contains(host, "quiknode") || strings.Contains(host, "quicknode") {
		return "quiknode"
	}

	switch {
	case strings.Contains(host, "mainnet"):
		return NetworkMainnet
	case strings.Contains(host, "devnet"):
		return NetworkDevnet
	case strings.Contains(host, "testnet"):
		return NetworkTestnet
	case host == "localhost" || host == "127.0.0.1":
		return NetworkLocalnet
	}
	return host
}
