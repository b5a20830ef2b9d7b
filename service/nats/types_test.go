package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/tokenforge/service/tokentx"
)

func TestFromResult(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ata := solana.NewWallet().PublicKey()

	res := &tokentx.Result{
		Envelope: &tokentx.Envelope{
			Transaction:          "AQID",
			Encoding:             tokentx.EncodingBase64,
			Blockhash:            solana.Hash{5},
			LastValidBlockHeight: 77,
			FeePayer:             payer,
			InstructionCount:     2,
			MissingSigners:       []solana.PublicKey{payer},
		},
		Operation:       tokentx.OpMintToken,
		MintAddress:     mint,
		CreatedAccounts: []solana.PublicKey{ata},
		BaseUnits:       2500000,
		Decimals:        6,
	}

	event := FromResult(res, "devnet")

	assert.Equal(t, "mint_token", event.Operation)
	assert.Equal(t, "builds.mint_token", event.Subject())
	assert.Equal(t, "devnet", event.Network)
	assert.Equal(t, payer.String(), event.Payer)
	assert.Equal(t, mint.String(), event.Mint)
	assert.Equal(t, []string{ata.String()}, event.CreatedAccounts)
	assert.Equal(t, []string{payer.String()}, event.MissingSigners)
	assert.Equal(t, uint64(2500000), event.BaseUnits)
	assert.Equal(t, 2, event.InstructionCount)
	assert.Equal(t, solana.Hash{5}.String(), event.Blockhash)
	assert.Equal(t, uint64(77), event.LastValidBlockHeight)
	assert.Equal(t, "base64", event.Encoding)
	assert.WithinDuration(t, time.Now(), event.PublishedAt, 5*time.Second)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AQID", "events must not carry the envelope")
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	pub := NewMockPublisher()

	require.NoError(t, pub.PublishBuild(ctx, &BuildEvent{Operation: "burn_token"}))
	require.NoError(t, pub.PublishBuild(ctx, &BuildEvent{Operation: "mint_token"}))
	assert.Equal(t, 2, pub.GetPublishedEventCount())
	assert.Len(t, pub.GetPublishedEventsForOperation("burn_token"), 1)

	pub.SetPublishError(errors.New("nats down"))
	assert.Error(t, pub.PublishBuild(ctx, &BuildEvent{Operation: "burn_token"}))
	assert.Equal(t, 2, pub.GetPublishedEventCount())

	require.NoError(t, pub.Close())
	assert.True(t, pub.IsClosed())

	pub.Reset()
	assert.Zero(t, pub.GetPublishedEventCount())
	assert.False(t, pub.IsClosed())
}
