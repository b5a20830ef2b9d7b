package nats

import (
	"time"

	"github.com/brojonat/tokenforge/service/tokentx"
)

// BuildEvent announces a successfully built token transaction. It is
// published to the subject "builds.{operation}" in JetStream and carries no
// envelope and no key material.
type BuildEvent struct {
	Operation string `json:"operation"`
	Network   string `json:"network"`

	Payer           string   `json:"payer"`
	Mint            string   `json:"mint"`
	CreatedAccounts []string `json:"created_accounts,omitempty"`
	MissingSigners  []string `json:"missing_signers"`

	BaseUnits        uint64 `json:"base_units,omitempty"`
	Decimals         uint8  `json:"decimals"`
	InstructionCount int    `json:"instruction_count"`

	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height"`
	Encoding             string `json:"encoding"`

	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the subject the event is published to.
func (e *BuildEvent) Subject() string {
	return SubjectPrefix + e.Operation
}

// FromResult converts a build result to a BuildEvent for publishing.
func FromResult(res *tokentx.Result, network string) *BuildEvent {
	event := &BuildEvent{
		Operation:            res.Operation,
		Network:              network,
		Payer:                res.FeePayer.String(),
		Mint:                 res.MintAddress.String(),
		BaseUnits:            res.BaseUnits,
		Decimals:             res.Decimals,
		InstructionCount:     res.InstructionCount,
		Blockhash:            res.Blockhash.String(),
		LastValidBlockHeight: res.LastValidBlockHeight,
		Encoding:             string(res.Encoding),
		PublishedAt:          time.Now().UTC(),
	}

	for _, acct := range res.CreatedAccounts {
		event.CreatedAccounts = append(event.CreatedAccounts, acct.String())
	}
	event.MissingSigners = make([]string, 0, len(res.MissingSigners))
	for _, signer := range res.MissingSigners {
		event.MissingSigners = append(event.MissingSigners, signer.String())
	}

	return event
}
