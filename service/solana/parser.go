package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// System program instruction types.
const (
	SystemProgramCreateAccountInstruction = uint32(0)
	SystemProgramTransferInstruction      = uint32(2)
)

// Token program instruction types.
const (
	TokenProgramInitializeMintInstruction  = uint8(0)
	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramApproveInstruction         = uint8(4)
	TokenProgramMintToInstruction          = uint8(7)
	TokenProgramBurnInstruction            = uint8(8)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

var tokenInstructionKinds = map[uint8]string{
	TokenProgramInitializeMintInstruction:  "initialize_mint",
	TokenProgramTransferInstruction:        "transfer",
	TokenProgramApproveInstruction:         "approve",
	TokenProgramMintToInstruction:          "mint_to",
	TokenProgramBurnInstruction:            "burn",
	TokenProgramTransferCheckedInstruction: "transfer_checked",
}

// ProgramName returns a short name for well-known programs, or the address.
func ProgramName(program solana.PublicKey) string {
	switch {
	case program.Equals(solana.SystemProgramID):
		return "system"
	case program.Equals(solana.TokenProgramID):
		return "spl-token"
	case program.Equals(solana.SPLAssociatedTokenAccountProgramID):
		return "associated-token-account"
	default:
		return program.String()
	}
}

// DescribeTransaction lists the signature slots and instructions of tx.
func DescribeTransaction(tx *solana.Transaction) (*TransactionSummary, error) {
	keys := tx.Message.AccountKeys
	if len(keys) == 0 {
		return nil, fmt.Errorf("transaction has no account keys")
	}

	summary := &TransactionSummary{
		FeePayer:  keys[0].String(),
		Blockhash: tx.Message.RecentBlockhash.String(),
	}

	numSigners := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < numSigners && i < len(keys); i++ {
		slot := SignatureSlot{Signer: keys[i].String()}
		if i < len(tx.Signatures) && tx.Signatures[i] != (solana.Signature{}) {
			slot.Signed = true
		}
		summary.Signatures = append(summary.Signatures, slot)
	}

	for i, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("instruction %d: program index %d out of bounds", i, ix.ProgramIDIndex)
		}
		accounts := make([]string, 0, len(ix.Accounts))
		for _, idx := range ix.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("instruction %d: account index %d out of bounds", i, idx)
			}
			accounts = append(accounts, keys[idx].String())
		}

		program := keys[ix.ProgramIDIndex]
		desc := describeInstruction(program, ix.Data)
		desc.Accounts = accounts
		summary.Instructions = append(summary.Instructions, desc)
	}

	return summary, nil
}

func describeInstruction(program solana.PublicKey, data []byte) InstructionSummary {
	desc := InstructionSummary{Program: ProgramName(program), Kind: "unknown"}

	switch {
	case program.Equals(solana.SystemProgramID):
		if len(data) < 4 {
			return desc
		}
		switch binary.LittleEndian.Uint32(data[0:4]) {
		case SystemProgramCreateAccountInstruction:
			desc.Kind = "create_account"
		case SystemProgramTransferInstruction:
			desc.Kind = "transfer"
		default:
			return desc
		}
		// Both layouts carry lamports right after the type tag.
		if len(data) >= 12 {
			lamports := binary.LittleEndian.Uint64(data[4:12])
			desc.Amount = &lamports
		}

	case program.Equals(solana.TokenProgramID):
		if len(data) == 0 {
			return desc
		}
		kind, ok := tokenInstructionKinds[data[0]]
		if !ok {
			return desc
		}
		desc.Kind = kind
		if data[0] == TokenProgramInitializeMintInstruction {
			if len(data) >= 2 {
				decimals := data[1]
				desc.Decimals = &decimals
			}
			return desc
		}
		// [0] = type, [1..9] = amount (u64)
		if len(data) >= 9 {
			amount := binary.LittleEndian.Uint64(data[1:9])
			desc.Amount = &amount
		}
		if data[0] == TokenProgramTransferCheckedInstruction && len(data) >= 10 {
			decimals := data[9]
			desc.Decimals = &decimals
		}

	case program.Equals(solana.SPLAssociatedTokenAccountProgramID):
		// Create carries no data (or a single 0); CreateIdempotent is 1.
		switch {
		case len(data) == 0 || data[0] == 0:
			desc.Kind = "create"
		case data[0] == 1:
			desc.Kind = "create_idempotent"
		}
	}

	return desc
}
