package tokentx

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MockLedger is an in-memory Ledger for tests. Accounts and mints are set up
// front; every call is counted.
type MockLedger struct {
	mu          sync.RWMutex
	accounts    map[solana.PublicKey]*AccountInfo
	mints       map[solana.PublicKey]*MintInfo
	anchors     []Anchor
	anchorCalls int
	rent        uint64
	calls       map[string]int
	errs        map[string]error
}

// Method names accepted by SetError and CallCount.
const (
	MethodLatestBlockhash  = "LatestBlockhash"
	MethodGetAccountInfo   = "GetAccountInfo"
	MethodGetMintInfo      = "GetMintInfo"
	MethodMinimumBalance   = "MinimumBalanceForRentExemption"
	defaultMockRentLamport = 1461600
)

// NewMockLedger creates an empty mock ledger. Until anchors are configured it
// hands out a distinct blockhash on every call.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		accounts: make(map[solana.PublicKey]*AccountInfo),
		mints:    make(map[solana.PublicKey]*MintInfo),
		rent:     defaultMockRentLamport,
		calls:    make(map[string]int),
		errs:     make(map[string]error),
	}
}

func (m *MockLedger) LatestBlockhash(ctx context.Context) (Anchor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[MethodLatestBlockhash]++

	if err := m.errs[MethodLatestBlockhash]; err != nil {
		return Anchor{}, err
	}

	n := m.anchorCalls
	m.anchorCalls++
	if len(m.anchors) > 0 {
		if n >= len(m.anchors) {
			n = len(m.anchors) - 1
		}
		return m.anchors[n], nil
	}

	var hash solana.Hash
	hash[0] = 0xA0
	hash[1] = byte(n >> 8)
	hash[2] = byte(n)
	return Anchor{Blockhash: hash, LastValidBlockHeight: uint64(1000 + n)}, nil
}

func (m *MockLedger) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[MethodGetAccountInfo]++

	if err := m.errs[MethodGetAccountInfo]; err != nil {
		return nil, err
	}
	info, ok := m.accounts[address]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

func (m *MockLedger) GetMintInfo(ctx context.Context, mint solana.PublicKey) (*MintInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[MethodGetMintInfo]++

	if err := m.errs[MethodGetMintInfo]; err != nil {
		return nil, err
	}
	info, ok := m.mints[mint]
	if !ok {
		return nil, fmt.Errorf("%w: mint %s", ErrNotFound, mint)
	}
	cp := *info
	return &cp, nil
}

func (m *MockLedger) MinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[MethodMinimumBalance]++

	if err := m.errs[MethodMinimumBalance]; err != nil {
		return 0, err
	}
	return m.rent, nil
}

// AddMint registers an initialized mint with the given decimals.
func (m *MockLedger) AddMint(mint solana.PublicKey, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints[mint] = &MintInfo{Address: mint, Decimals: decimals}
}

// AddAccount marks address as an existing account.
func (m *MockLedger) AddAccount(address solana.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[address] = &AccountInfo{
		Address:  address,
		Owner:    solana.TokenProgramID,
		Lamports: 2039280,
		DataLen:  165,
	}
}

// AddTokenAccount marks the associated token account of owner for mint as existing.
func (m *MockLedger) AddTokenAccount(mint, owner solana.PublicKey) solana.PublicKey {
	ata, err := DeriveAssociatedAddress(mint, owner)
	if err != nil {
		panic(err)
	}
	m.AddAccount(ata)
	return ata
}

// SetAnchors fixes the sequence of anchors returned; the last one repeats.
func (m *MockLedger) SetAnchors(anchors ...Anchor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchors = anchors
	m.anchorCalls = 0
}

// SetRent sets the rent-exempt minimum returned for any size.
func (m *MockLedger) SetRent(lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rent = lamports
}

// SetError makes method fail with err. A nil err clears it.
func (m *MockLedger) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// CallCount returns how many times method was called.
func (m *MockLedger) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// TotalCalls returns the number of ledger calls of any kind.
func (m *MockLedger) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}
