package tokentx

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
)

// ResolvedAccount is the outcome of the read phase for one associated token
// account: where it lives and whether it already exists. Builders consume it
// without touching the ledger again.
type ResolvedAccount struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Mint    solana.PublicKey
	Exists  bool
}

// CreateInstruction returns the instruction that creates the account, paid
// for by payer, or nil when the account already exists.
func (a ResolvedAccount) CreateInstruction(payer solana.PublicKey) (solana.Instruction, error) {
	if a.Exists {
		return nil, nil
	}

	ix := associatedtokenaccount.NewCreateInstruction(payer, a.Owner, a.Mint).Build()

	// The program derives the target itself; it has to be the account we resolved.
	accounts := ix.Accounts()
	if len(accounts) < 2 || !accounts[1].PublicKey.Equals(a.Address) {
		return nil, fmt.Errorf("%w: create instruction targets a different account than %s", ErrDerivationMismatch, a.Address)
	}

	return ix, nil
}

// DeriveAssociatedAddress computes the associated token account for owner and
// mint. It is pure: no ledger access is needed to know the address.
func DeriveAssociatedAddress(mint, owner solana.PublicKey) (solana.PublicKey, error) {
	ata, bump, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: find associated token address: %v", ErrDerivationMismatch, err)
	}

	check, err := solana.CreateProgramAddress(
		[][]byte{owner[:], solana.TokenProgramID[:], mint[:], {bump}},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil || !check.Equals(ata) {
		return solana.PublicKey{}, fmt.Errorf("%w: associated token address for owner %s and mint %s", ErrDerivationMismatch, owner, mint)
	}

	return ata, nil
}

// Resolver derives associated token accounts and checks whether they exist.
type Resolver struct {
	ledger Ledger
}

// NewResolver creates a Resolver reading from ledger.
func NewResolver(ledger Ledger) *Resolver {
	return &Resolver{ledger: ledger}
}

// Resolve derives the associated token account of owner for mint and looks it
// up on the ledger. Lookup failures are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, mint, owner solana.PublicKey) (ResolvedAccount, error) {
	ata, err := DeriveAssociatedAddress(mint, owner)
	if err != nil {
		return ResolvedAccount{}, err
	}

	info, err := r.ledger.GetAccountInfo(ctx, ata)
	if err != nil {
		return ResolvedAccount{}, fmt.Errorf("look up associated token account %s: %w", ata, err)
	}

	return ResolvedAccount{
		Address: ata,
		Owner:   owner,
		Mint:    mint,
		Exists:  info != nil,
	}, nil
}

// EnsureAccountInstruction is Resolve followed by CreateInstruction.
// It returns a nil instruction when the account is already present.
func (r *Resolver) EnsureAccountInstruction(ctx context.Context, mint, owner, payer solana.PublicKey) (solana.Instruction, error) {
	acct, err := r.Resolve(ctx, mint, owner)
	if err != nil {
		return nil, err
	}
	return acct.CreateInstruction(payer)
}
