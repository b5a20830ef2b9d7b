package tokentx

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Encoding selects the text encoding of a finalized envelope.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingBase58 Encoding = "base58"
)

// ParseEncoding validates an encoding name. Empty means base64.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingBase64:
		return EncodingBase64, nil
	case EncodingBase58:
		return EncodingBase58, nil
	default:
		return "", invalidInput("unsupported envelope encoding %q: must be base64 or base58", s)
	}
}

// Envelope is a serialized, partially signed transaction ready for the end
// user to sign and broadcast.
type Envelope struct {
	// Transaction is the encoded wire transaction.
	Transaction          string
	Encoding             Encoding
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	FeePayer             solana.PublicKey
	InstructionCount     int
	// MissingSigners are the accounts whose signatures the caller still has to add.
	MissingSigners []solana.PublicKey
}

// Finalizer turns instructions into an encoded envelope.
type Finalizer struct {
	ledger   Ledger
	encoding Encoding
}

// NewFinalizer creates a Finalizer that fetches anchors from ledger.
func NewFinalizer(ledger Ledger, encoding Encoding) *Finalizer {
	if encoding == "" {
		encoding = EncodingBase64
	}
	return &Finalizer{ledger: ledger, encoding: encoding}
}

// Finalize stamps the instructions with a freshly fetched blockhash and the
// fee payer, signs with the co-signers only, and serializes the result with
// the remaining signature slots left empty.
func (f *Finalizer) Finalize(
	ctx context.Context,
	instructions []solana.Instruction,
	feePayer solana.PublicKey,
	coSigners []solana.PrivateKey,
) (*Envelope, error) {
	if len(instructions) == 0 {
		return nil, invalidInput("no instructions to finalize")
	}

	anchor, err := f.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, anchor.Blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}

	// PartialSign sizes the signature list to every required signer and fills
	// in only the keys we hold; the rest stay zeroed for the caller.
	signed := make(map[solana.PublicKey]struct{}, len(coSigners))
	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range coSigners {
			if coSigners[i].PublicKey().Equals(key) {
				signed[key] = struct{}{}
				return &coSigners[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("co-sign transaction: %w", err)
	}
	if len(signed) != len(coSigners) {
		return nil, fmt.Errorf("%w: co-signer is not a required signer of the transaction", ErrDerivationMismatch)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	encoded, err := encode(raw, f.encoding)
	if err != nil {
		return nil, err
	}

	var missing []solana.PublicKey
	for _, key := range tx.Message.Signers() {
		if _, ok := signed[key]; !ok {
			missing = append(missing, key)
		}
	}

	return &Envelope{
		Transaction:          encoded,
		Encoding:             f.encoding,
		Blockhash:            anchor.Blockhash,
		LastValidBlockHeight: anchor.LastValidBlockHeight,
		FeePayer:             feePayer,
		InstructionCount:     len(instructions),
		MissingSigners:       missing,
	}, nil
}

func encode(raw []byte, encoding Encoding) (string, error) {
	switch encoding {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw), nil
	case EncodingBase58:
		return base58.Encode(raw), nil
	default:
		return "", invalidInput("unsupported envelope encoding %q", encoding)
	}
}

// DecodeEnvelope parses an encoded envelope back into a transaction.
func DecodeEnvelope(encoded string, encoding Encoding) (*solana.Transaction, error) {
	var (
		raw []byte
		err error
	)
	switch encoding {
	case "", EncodingBase64:
		raw, err = base64.StdEncoding.DecodeString(encoded)
	case EncodingBase58:
		raw, err = base58.Decode(encoded)
	default:
		return nil, invalidInput("unsupported envelope encoding %q", encoding)
	}
	if err != nil {
		return nil, invalidInput("decode %s envelope: %v", encoding, err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, invalidInput("parse transaction: %v", err)
	}
	return tx, nil
}
