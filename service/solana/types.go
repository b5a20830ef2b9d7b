package solana

// TransactionSummary is a readable view of a decoded envelope.
type TransactionSummary struct {
	FeePayer     string               `json:"fee_payer"`
	Blockhash    string               `json:"blockhash"`
	Signatures   []SignatureSlot      `json:"signatures"`
	Instructions []InstructionSummary `json:"instructions"`
}

// SignatureSlot is one required signer and whether its signature is present.
type SignatureSlot struct {
	Signer string `json:"signer"`
	Signed bool   `json:"signed"`
}

// InstructionSummary describes one instruction.
type InstructionSummary struct {
	Program  string   `json:"program"`
	Kind     string   `json:"kind"`
	Amount   *uint64  `json:"amount,omitempty"`   // base units or lamports
	Decimals *uint8   `json:"decimals,omitempty"` // set for initialize_mint
	Accounts []string `json:"accounts"`
}
