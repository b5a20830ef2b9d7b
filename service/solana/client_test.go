package solana

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/brojonat/tokenforge/service/tokentx"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	mu          sync.Mutex
	blockhash   *rpc.GetLatestBlockhashResult
	accounts    map[solana.PublicKey]*rpc.Account
	rent        uint64
	err         error
	commitments []rpc.CommitmentType
}

func (m *mockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitments = append(m.commitments, commitment)
	if m.err != nil {
		return nil, m.err
	}
	return m.blockhash, nil
}

func (m *mockRPCClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitments = append(m.commitments, opts.Commitment)
	if m.err != nil {
		return nil, m.err
	}
	acct, ok := m.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acct}, nil
}

func (m *mockRPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitments = append(m.commitments, commitment)
	if m.err != nil {
		return 0, m.err
	}
	return m.rent, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "devnet", rpc.CommitmentConfirmed, metrics.NewMetrics(prometheus.NewRegistry()), logger)
}

// mintData encodes the 82-byte mint layout.
func mintData(authority *solana.PublicKey, supply uint64, decimals uint8, initialized bool) []byte {
	data := make([]byte, tokentx.MintAccountSize)
	if authority != nil {
		binary.LittleEndian.PutUint32(data[0:4], 1)
		copy(data[4:36], authority[:])
	}
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	if initialized {
		data[45] = 1
	}
	return data
}

func TestLatestBlockhash(t *testing.T) {
	hash := solana.Hash{9, 9, 9}
	mock := &mockRPCClient{
		blockhash: &rpc.GetLatestBlockhashResult{
			Value: &rpc.LatestBlockhashResult{Blockhash: hash, LastValidBlockHeight: 4242},
		},
	}

	anchor, err := newTestClient(mock).LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, anchor.Blockhash)
	assert.Equal(t, uint64(4242), anchor.LastValidBlockHeight)
	assert.Equal(t, []rpc.CommitmentType{rpc.CommitmentConfirmed}, mock.commitments)
}

func TestLatestBlockhash_EmptyResponse(t *testing.T) {
	_, err := newTestClient(&mockRPCClient{blockhash: &rpc.GetLatestBlockhashResult{}}).LatestBlockhash(context.Background())
	assert.ErrorIs(t, err, tokentx.ErrLedgerUnavailable)
}

func TestGetAccountInfo(t *testing.T) {
	present := solana.NewWallet().PublicKey()
	mock := &mockRPCClient{
		accounts: map[solana.PublicKey]*rpc.Account{
			present: {
				Owner:    solana.TokenProgramID,
				Lamports: 2039280,
				Data:     rpc.DataBytesOrJSONFromBytes(make([]byte, 165)),
			},
		},
	}
	client := newTestClient(mock)

	info, err := client.GetAccountInfo(context.Background(), present)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, present, info.Address)
	assert.Equal(t, solana.TokenProgramID, info.Owner)
	assert.Equal(t, uint64(2039280), info.Lamports)
	assert.Equal(t, 165, info.DataLen)

	info, err = client.GetAccountInfo(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetMintInfo(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()
	mock := &mockRPCClient{
		accounts: map[solana.PublicKey]*rpc.Account{
			mint: {
				Owner: solana.TokenProgramID,
				Data:  rpc.DataBytesOrJSONFromBytes(mintData(&authority, 1_000_000, 6, true)),
			},
		},
	}

	info, err := newTestClient(mock).GetMintInfo(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, mint, info.Address)
	assert.Equal(t, uint8(6), info.Decimals)
	assert.Equal(t, uint64(1_000_000), info.Supply)
	require.NotNil(t, info.MintAuthority)
	assert.Equal(t, authority, *info.MintAuthority)
	assert.Nil(t, info.FreezeAuthority)
}

func TestGetMintInfo_NotAMint(t *testing.T) {
	missing := solana.NewWallet().PublicKey()
	wrongOwner := solana.NewWallet().PublicKey()
	short := solana.NewWallet().PublicKey()
	uninitialized := solana.NewWallet().PublicKey()

	mock := &mockRPCClient{
		accounts: map[solana.PublicKey]*rpc.Account{
			wrongOwner: {
				Owner: solana.SystemProgramID,
				Data:  rpc.DataBytesOrJSONFromBytes(mintData(nil, 0, 6, true)),
			},
			short: {
				Owner: solana.TokenProgramID,
				Data:  rpc.DataBytesOrJSONFromBytes(make([]byte, 10)),
			},
			uninitialized: {
				Owner: solana.TokenProgramID,
				Data:  rpc.DataBytesOrJSONFromBytes(mintData(nil, 0, 6, false)),
			},
		},
	}
	client := newTestClient(mock)

	for name, addr := range map[string]solana.PublicKey{
		"missing":       missing,
		"wrong owner":   wrongOwner,
		"too short":     short,
		"uninitialized": uninitialized,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := client.GetMintInfo(context.Background(), addr)
			assert.ErrorIs(t, err, tokentx.ErrNotFound)
		})
	}
}

func TestMinimumBalanceForRentExemption(t *testing.T) {
	lamports, err := newTestClient(&mockRPCClient{rent: 1461600}).
		MinimumBalanceForRentExemption(context.Background(), tokentx.MintAccountSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(1461600), lamports)
}

func TestTransportErrorsAreLedgerUnavailable(t *testing.T) {
	client := newTestClient(&mockRPCClient{err: errors.New("connection refused")})
	ctx := context.Background()
	key := solana.NewWallet().PublicKey()

	_, err := client.LatestBlockhash(ctx)
	assert.ErrorIs(t, err, tokentx.ErrLedgerUnavailable)

	_, err = client.GetAccountInfo(ctx, key)
	assert.ErrorIs(t, err, tokentx.ErrLedgerUnavailable)

	_, err = client.GetMintInfo(ctx, key)
	assert.ErrorIs(t, err, tokentx.ErrLedgerUnavailable)

	_, err = client.MinimumBalanceForRentExemption(ctx, 82)
	assert.ErrorIs(t, err, tokentx.ErrLedgerUnavailable)
}

func TestClientKeepsAPIKeyOutOfMetricsAndLogs(t *testing.T) {
	const rpcURL = "https://mainnet.helius-rpc.com/?api-key=top-secret"
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mock := &mockRPCClient{
		blockhash: &rpc.GetLatestBlockhashResult{
			Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{1}, LastValidBlockHeight: 1},
		},
	}
	client := NewClient(mock, EndpointLabel(rpcURL), rpc.CommitmentConfirmed, metrics.NewMetrics(reg), logger)

	_, err := client.LatestBlockhash(context.Background())
	require.NoError(t, err)

	mock.mu.Lock()
	mock.err = errors.New("connection refused")
	mock.mu.Unlock()
	_, err = client.LatestBlockhash(context.Background())
	require.ErrorIs(t, err, tokentx.ErrLedgerUnavailable)

	families, err := reg.Gather()
	require.NoError(t, err)
	var endpoints []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "endpoint" {
					endpoints = append(endpoints, label.GetValue())
				}
			}
		}
	}
	require.NotEmpty(t, endpoints)
	for _, endpoint := range endpoints {
		assert.Equal(t, "helius", endpoint)
	}

	assert.Contains(t, logs.String(), `"endpoint":"helius"`)
	assert.NotContains(t, logs.String(), "top-secret")
}

func TestCanceledContextIsNotLedgerUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(&mockRPCClient{err: context.Canceled})
	_, err := client.LatestBlockhash(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, tokentx.ErrLedgerUnavailable)
	assert.Equal(t, tokentx.KindCanceled, tokentx.Kind(err))
}

func TestClientDrivesService(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	mock := &mockRPCClient{
		blockhash: &rpc.GetLatestBlockhashResult{
			Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{1}, LastValidBlockHeight: 10},
		},
		accounts: map[solana.PublicKey]*rpc.Account{
			mint: {
				Owner: solana.TokenProgramID,
				Data:  rpc.DataBytesOrJSONFromBytes(mintData(&payer, 0, 6, true)),
			},
		},
	}

	svc := tokentx.NewService(newTestClient(mock))
	res, err := svc.MintToken(context.Background(), tokentx.MintTokenParams{
		Payer:     payer.String(),
		Mint:      mint.String(),
		Recipient: solana.NewWallet().PublicKey().String(),
		Amount:    mustAmount(t, "2.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2500000), res.BaseUnits)
	assert.Len(t, res.CreatedAccounts, 1)
	assert.Equal(t, 2, res.InstructionCount)
}
