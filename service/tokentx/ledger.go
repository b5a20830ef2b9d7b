package tokentx

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// MintAccountSize is the size in bytes of an SPL token mint account.
const MintAccountSize = 82

// Ledger is the read-only view of the chain the service needs.
// Implementations must be safe for concurrent use and must not retry.
// Transport failures wrap ErrLedgerUnavailable.
type Ledger interface {
	// LatestBlockhash returns a fresh validity anchor. It must not be cached.
	LatestBlockhash(ctx context.Context) (Anchor, error)

	// GetAccountInfo returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)

	// GetMintInfo returns an error wrapping ErrNotFound when the address does
	// not hold an initialized mint.
	GetMintInfo(ctx context.Context, mint solana.PublicKey) (*MintInfo, error)

	// MinimumBalanceForRentExemption returns the lamports needed to keep an
	// account of dataSize bytes alive.
	MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
}

// Anchor is a recent blockhash and the last block height it is valid for.
type Anchor struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// AccountInfo is the subset of account state the resolver looks at.
type AccountInfo struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	DataLen  int
}

// MintInfo is the decoded state of a mint account.
type MintInfo struct {
	Address         solana.PublicKey
	Decimals        uint8
	Supply          uint64
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
}
