package tokentx

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// decodedInstruction is a compiled instruction with its keys resolved.
type decodedInstruction struct {
	Program  solana.PublicKey
	Accounts []solana.PublicKey
	Data     []byte
}

func decodeEnvelope(t *testing.T, env *Envelope) (*solana.Transaction, []decodedInstruction) {
	t.Helper()

	tx, err := DecodeEnvelope(env.Transaction, env.Encoding)
	require.NoError(t, err)

	keys := tx.Message.AccountKeys
	out := make([]decodedInstruction, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		d := decodedInstruction{
			Program: keys[ix.ProgramIDIndex],
			Data:    []byte(ix.Data),
		}
		for _, idx := range ix.Accounts {
			d.Accounts = append(d.Accounts, keys[idx])
		}
		out = append(out, d)
	}
	return tx, out
}

// tokenAmount reads the u64 amount that follows the one-byte token
// instruction tag.
func tokenAmount(t *testing.T, data []byte) uint64 {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 9)
	return binary.LittleEndian.Uint64(data[1:9])
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	return solana.NewWallet().PublicKey()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	tagInitializeMint = 0
	tagTransfer       = 3
	tagApprove        = 4
	tagMintTo         = 7
	tagBurn           = 8
)
