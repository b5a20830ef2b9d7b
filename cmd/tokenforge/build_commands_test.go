package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/tokenforge/client"
	"github.com/brojonat/tokenforge/service/config"
	"github.com/brojonat/tokenforge/service/server"
	"github.com/brojonat/tokenforge/service/tokentx"
)

func newBuildServer(t *testing.T, decimals uint8) (*httptest.Server, solana.PublicKey) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := tokentx.NewMockLedger()
	mint := solana.NewWallet().PublicKey()
	ledger.AddMint(mint, decimals)

	cfg := &config.Config{SolanaNetwork: "devnet", MaxRequestBody: 1 << 20}
	svc := tokentx.NewService(ledger, tokentx.WithLogger(logger))
	srv := httptest.NewServer(server.New(cfg, svc, nil, nil, nil, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, mint
}

func TestBuildMintCommand_JSON(t *testing.T) {
	srv, mint := newBuildServer(t, 6)
	payer := solana.NewWallet().PublicKey().String()
	recipient := solana.NewWallet().PublicKey().String()

	out, err := runApp(t, "--server-url", srv.URL, "--json",
		"build", "mint",
		"--payer", payer,
		"--mint", mint.String(),
		"--recipient", recipient,
		"--amount", "2.5",
	)
	require.NoError(t, err)

	var tx client.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &tx))
	assert.Equal(t, payer, tx.FeePayer)
	assert.Equal(t, []string{payer}, tx.MissingSigners)
	require.Len(t, tx.CreatedAccounts, 1)

	// The envelope round-trips through the decode command.
	decoded, err := runApp(t, "--jq", "[.instructions[].kind] | join(\",\")", "decode", tx.EncodedTransaction)
	require.NoError(t, err)
	assert.Equal(t, "create,mint_to\n", decoded)

	amount, err := runApp(t, "--jq", ".instructions[1].amount", "decode", tx.EncodedTransaction)
	require.NoError(t, err)
	assert.Equal(t, "2500000\n", amount)
}

func TestBuildCreateTokenCommand_Text(t *testing.T) {
	srv, _ := newBuildServer(t, 9)
	payer := solana.NewWallet().PublicKey().String()

	out, err := runApp(t, "--server-url", srv.URL, "build", "create-token", "--payer", payer, "--decimals", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Mint:")
	assert.Contains(t, out, "Fee Payer:       "+payer)
	assert.Contains(t, out, "Transaction (base64):")
}

func TestBuildCommand_ServerRejects(t *testing.T) {
	srv, mint := newBuildServer(t, 6)
	payer := solana.NewWallet().PublicKey().String()

	_, err := runApp(t, "--server-url", srv.URL,
		"build", "burn",
		"--payer", payer,
		"--account", payer,
		"--mint", mint.String(),
		"--amount", "0",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build burn transaction")
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestBuildCommand_RequiredFlags(t *testing.T) {
	_, err := runApp(t, "build", "transfer", "--payer", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Required flag")
}

func TestLocalBuilder(t *testing.T) {
	ledger := tokentx.NewMockLedger()
	mint := solana.NewWallet().PublicKey()
	ledger.AddMint(mint, 2)
	owner := solana.NewWallet().PublicKey()
	ledger.AddTokenAccount(mint, owner)

	b := &localBuilder{svc: tokentx.NewService(ledger)}
	ctx := context.Background()
	payer := solana.NewWallet().PublicKey().String()

	created, err := b.CreateToken(ctx, payer, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, created.MintPublicKey)

	delegated, err := b.DelegateToken(ctx, payer, owner.String(), solana.NewWallet().PublicKey().String(), mint.String(), "1.25")
	require.NoError(t, err)
	assert.Empty(t, delegated.MintPublicKey)
	assert.Empty(t, delegated.CreatedAccounts)
	assert.Contains(t, delegated.MissingSigners, owner.String())

	_, err = b.TransferToken(ctx, payer, owner.String(), payer, mint.String(), "abc")
	assert.ErrorIs(t, err, tokentx.ErrInvalidAmount)
}

func TestNewLocalBuilder_UnknownNetwork(t *testing.T) {
	_, err := runApp(t, "--network", "moonnet", "local", "create-token", "--payer", "x", "--decimals", "1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "moonnet"))
}
