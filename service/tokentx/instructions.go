package tokentx

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// The builders below are pure: every ledger-derived fact they need arrives as
// an argument. Each returns instructions in the order they must execute, with
// any account creation ahead of the instruction that uses the account.

// CreateMintParams describes a new mint.
type CreateMintParams struct {
	Payer    solana.PublicKey
	Mint     solana.PublicKey
	Decimals uint8
	// RentLamports is the rent-exempt minimum for MintAccountSize bytes.
	RentLamports uint64
}

// BuildCreateMint allocates and funds the mint account, then initializes it
// with the payer as both mint and freeze authority.
func BuildCreateMint(p CreateMintParams) ([]solana.Instruction, error) {
	create, err := system.NewCreateAccountInstruction(
		p.RentLamports,
		MintAccountSize,
		solana.TokenProgramID,
		p.Payer,
		p.Mint,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build create account instruction: %w", err)
	}

	initialize, err := token.NewInitializeMintInstruction(
		p.Decimals,
		p.Payer,
		p.Payer,
		p.Mint,
		solana.SysVarRentPubkey,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build initialize mint instruction: %w", err)
	}

	return []solana.Instruction{create, initialize}, nil
}

// BuildMintTo mints amount base units into the recipient's associated account,
// creating it first when absent. The payer is the mint authority.
func BuildMintTo(payer solana.PublicKey, recipient ResolvedAccount, amount uint64) ([]solana.Instruction, error) {
	out, err := prependCreate(nil, recipient, payer)
	if err != nil {
		return nil, err
	}

	mintTo, err := token.NewMintToInstruction(
		amount,
		recipient.Mint,
		recipient.Address,
		payer,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build mint-to instruction: %w", err)
	}

	return append(out, mintTo), nil
}

// BuildTransfer moves amount base units from source to the destination's
// associated account, creating the destination first when absent. The payer
// signs as owner of the source account.
func BuildTransfer(payer, source solana.PublicKey, destination ResolvedAccount, amount uint64) ([]solana.Instruction, error) {
	out, err := prependCreate(nil, destination, payer)
	if err != nil {
		return nil, err
	}

	transfer, err := token.NewTransferInstruction(
		amount,
		source,
		destination.Address,
		payer,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build transfer instruction: %w", err)
	}

	return append(out, transfer), nil
}

// BuildBurn burns amount base units from the account, creating it first when
// absent. The payer signs as owner.
func BuildBurn(payer solana.PublicKey, account ResolvedAccount, amount uint64) ([]solana.Instruction, error) {
	out, err := prependCreate(nil, account, payer)
	if err != nil {
		return nil, err
	}

	burn, err := token.NewBurnInstruction(
		amount,
		account.Address,
		account.Mint,
		payer,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build burn instruction: %w", err)
	}

	return append(out, burn), nil
}

// BuildApprove lets delegate spend up to amount base units from the owner's
// associated account, creating it first when absent. The owner signs.
func BuildApprove(payer, delegate solana.PublicKey, account ResolvedAccount, amount uint64) ([]solana.Instruction, error) {
	out, err := prependCreate(nil, account, payer)
	if err != nil {
		return nil, err
	}

	approve, err := token.NewApproveInstruction(
		amount,
		account.Address,
		delegate,
		account.Owner,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build approve instruction: %w", err)
	}

	return append(out, approve), nil
}

func prependCreate(out []solana.Instruction, account ResolvedAccount, payer solana.PublicKey) ([]solana.Instruction, error) {
	ix, err := account.CreateInstruction(payer)
	if err != nil {
		return nil, err
	}
	if ix != nil {
		out = append(out, ix)
	}
	return out, nil
}
