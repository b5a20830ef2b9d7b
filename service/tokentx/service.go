package tokentx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Operation names, used as log fields, metric labels and record types.
const (
	OpCreateToken   = "create_token"
	OpMintToken     = "mint_token"
	OpTransferToken = "transfer_token"
	OpBurnToken     = "burn_token"
	OpDelegateToken = "delegate_token"
)

// Service builds fee-payer-delegated SPL token transactions. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	ledger    Ledger
	resolver  *Resolver
	finalizer *Finalizer
	newKey    func() (solana.PrivateKey, error)
	encoding  Encoding
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithEncoding sets the envelope text encoding (base64 by default).
func WithEncoding(encoding Encoding) Option {
	return func(s *Service) { s.encoding = encoding }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables build metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithKeyGenerator replaces the generator of new mint keypairs.
func WithKeyGenerator(gen func() (solana.PrivateKey, error)) Option {
	return func(s *Service) { s.newKey = gen }
}

// NewService creates a Service that reads from ledger.
func NewService(ledger Ledger, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		newKey:   solana.NewRandomPrivateKey,
		encoding: EncodingBase64,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewResolver(ledger)
	s.finalizer = NewFinalizer(ledger, s.encoding)
	return s
}

// Result is a finalized envelope plus what the service learned building it.
type Result struct {
	*Envelope
	Operation string
	// MintAddress is the mint the transaction acts on. For CreateToken it is
	// the freshly generated mint.
	MintAddress solana.PublicKey
	// CreatedAccounts lists associated token accounts the transaction creates.
	CreatedAccounts []solana.PublicKey
	BaseUnits       uint64
	Decimals        uint8
}

// CreateTokenParams are the inputs of CreateToken.
type CreateTokenParams struct {
	Payer    string
	Decimals int
}

// CreateToken builds a transaction creating a new mint owned by the payer.
// The new mint's keypair co-signs the envelope and is then dropped; only its
// address is returned.
func (s *Service) CreateToken(ctx context.Context, p CreateTokenParams) (res *Result, err error) {
	defer s.observe(ctx, OpCreateToken, time.Now(), &res, &err)

	payer, err := parseAddress("payer", p.Payer)
	if err != nil {
		return nil, err
	}
	if p.Decimals < 0 || p.Decimals > 255 {
		return nil, invalidAmount("decimals must be between 0 and 255, got %d", p.Decimals)
	}
	decimals := uint8(p.Decimals)

	rent, err := s.ledger.MinimumBalanceForRentExemption(ctx, MintAccountSize)
	if err != nil {
		return nil, fmt.Errorf("fetch rent-exempt minimum for mint: %w", err)
	}

	mintKey, err := s.newKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint keypair: %w", err)
	}
	mint := mintKey.PublicKey()

	instructions, err := BuildCreateMint(CreateMintParams{
		Payer:        payer,
		Mint:         mint,
		Decimals:     decimals,
		RentLamports: rent,
	})
	if err != nil {
		return nil, err
	}

	env, err := s.finalizer.Finalize(ctx, instructions, payer, []solana.PrivateKey{mintKey})
	if err != nil {
		return nil, err
	}

	return &Result{
		Envelope:    env,
		Operation:   OpCreateToken,
		MintAddress: mint,
		Decimals:    decimals,
	}, nil
}

// MintTokenParams are the inputs of MintToken.
type MintTokenParams struct {
	Payer     string
	Mint      string
	Recipient string
	Amount    decimal.Decimal
}

// MintToken builds a transaction minting Amount tokens to the recipient,
// creating the recipient's associated account when it does not exist.
func (s *Service) MintToken(ctx context.Context, p MintTokenParams) (res *Result, err error) {
	defer s.observe(ctx, OpMintToken, time.Now(), &res, &err)

	addrs, err := parseAddresses(
		field{"payer", p.Payer},
		field{"mintAddress", p.Mint},
		field{"recipientAddress", p.Recipient},
	)
	if err != nil {
		return nil, err
	}
	payer, mint, recipient := addrs[0], addrs[1], addrs[2]
	if err := requirePositive(p.Amount); err != nil {
		return nil, err
	}

	mintInfo, account, err := s.resolveWithMint(ctx, mint, recipient)
	if err != nil {
		return nil, err
	}
	units, err := baseUnits(p.Amount, mintInfo.Decimals)
	if err != nil {
		return nil, err
	}

	instructions, err := BuildMintTo(payer, account, units)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, OpMintToken, instructions, payer, account, mintInfo, units)
}

// TransferTokenParams are the inputs of TransferToken.
type TransferTokenParams struct {
	Payer  string
	From   string
	To     string
	Mint   string
	Amount decimal.Decimal
}

// TransferToken builds a transfer between the associated accounts of From and
// To, creating the destination account when it does not exist.
func (s *Service) TransferToken(ctx context.Context, p TransferTokenParams) (res *Result, err error) {
	defer s.observe(ctx, OpTransferToken, time.Now(), &res, &err)

	addrs, err := parseAddresses(
		field{"payer", p.Payer},
		field{"fromAddress", p.From},
		field{"toAddress", p.To},
		field{"mintAddress", p.Mint},
	)
	if err != nil {
		return nil, err
	}
	payer, from, to, mint := addrs[0], addrs[1], addrs[2], addrs[3]
	if err := requirePositive(p.Amount); err != nil {
		return nil, err
	}

	source, err := DeriveAssociatedAddress(mint, from)
	if err != nil {
		return nil, err
	}

	mintInfo, destination, err := s.resolveWithMint(ctx, mint, to)
	if err != nil {
		return nil, err
	}
	units, err := baseUnits(p.Amount, mintInfo.Decimals)
	if err != nil {
		return nil, err
	}

	instructions, err := BuildTransfer(payer, source, destination, units)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, OpTransferToken, instructions, payer, destination, mintInfo, units)
}

// BurnTokenParams are the inputs of BurnToken.
type BurnTokenParams struct {
	Payer   string
	Account string
	Mint    string
	Amount  decimal.Decimal
}

// BurnToken builds a burn from the associated account of Account.
func (s *Service) BurnToken(ctx context.Context, p BurnTokenParams) (res *Result, err error) {
	defer s.observe(ctx, OpBurnToken, time.Now(), &res, &err)

	addrs, err := parseAddresses(
		field{"payer", p.Payer},
		field{"accountAddress", p.Account},
		field{"mintAddress", p.Mint},
	)
	if err != nil {
		return nil, err
	}
	payer, owner, mint := addrs[0], addrs[1], addrs[2]
	if err := requirePositive(p.Amount); err != nil {
		return nil, err
	}

	mintInfo, account, err := s.resolveWithMint(ctx, mint, owner)
	if err != nil {
		return nil, err
	}
	units, err := baseUnits(p.Amount, mintInfo.Decimals)
	if err != nil {
		return nil, err
	}

	instructions, err := BuildBurn(payer, account, units)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, OpBurnToken, instructions, payer, account, mintInfo, units)
}

// DelegateTokenParams are the inputs of DelegateToken.
type DelegateTokenParams struct {
	Payer    string
	Owner    string
	Delegate string
	Mint     string
	Amount   decimal.Decimal
}

// DelegateToken builds an approve letting Delegate spend up to Amount from the
// owner's associated account.
func (s *Service) DelegateToken(ctx context.Context, p DelegateTokenParams) (res *Result, err error) {
	defer s.observe(ctx, OpDelegateToken, time.Now(), &res, &err)

	addrs, err := parseAddresses(
		field{"payer", p.Payer},
		field{"ownerAddress", p.Owner},
		field{"delegateAddress", p.Delegate},
		field{"mintAddress", p.Mint},
	)
	if err != nil {
		return nil, err
	}
	payer, owner, delegate, mint := addrs[0], addrs[1], addrs[2], addrs[3]
	if err := requirePositive(p.Amount); err != nil {
		return nil, err
	}

	mintInfo, account, err := s.resolveWithMint(ctx, mint, owner)
	if err != nil {
		return nil, err
	}
	units, err := baseUnits(p.Amount, mintInfo.Decimals)
	if err != nil {
		return nil, err
	}

	instructions, err := BuildApprove(payer, delegate, account, units)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, OpDelegateToken, instructions, payer, account, mintInfo, units)
}

// resolveWithMint runs the read phase of a token operation: the mint lookup
// and the associated account lookup are independent and run concurrently.
func (s *Service) resolveWithMint(ctx context.Context, mint, owner solana.PublicKey) (*MintInfo, ResolvedAccount, error) {
	var (
		mintInfo *MintInfo
		account  ResolvedAccount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := s.ledger.GetMintInfo(gctx, mint)
		if err != nil {
			return fmt.Errorf("look up mint %s: %w", mint, err)
		}
		mintInfo = info
		return nil
	})
	g.Go(func() error {
		acct, err := s.resolver.Resolve(gctx, mint, owner)
		if err != nil {
			return err
		}
		account = acct
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, ResolvedAccount{}, err
	}

	return mintInfo, account, nil
}

func (s *Service) finish(
	ctx context.Context,
	op string,
	instructions []solana.Instruction,
	payer solana.PublicKey,
	account ResolvedAccount,
	mintInfo *MintInfo,
	units uint64,
) (*Result, error) {
	env, err := s.finalizer.Finalize(ctx, instructions, payer, nil)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Envelope:    env,
		Operation:   op,
		MintAddress: mintInfo.Address,
		BaseUnits:   units,
		Decimals:    mintInfo.Decimals,
	}
	if !account.Exists {
		res.CreatedAccounts = []solana.PublicKey{account.Address}
	}
	return res, nil
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, res **Result, err *error) {
	duration := time.Since(start).Seconds()

	if *err != nil {
		kind := Kind(*err)
		level := slog.LevelWarn
		if kind == KindInvalidInput {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "token transaction build failed",
			"operation", op,
			"kind", kind,
			"error", *err,
		)
		if s.metrics != nil {
			s.metrics.RecordBuild(op, kind, duration)
		}
		return
	}

	r := *res
	s.logger.InfoContext(ctx, "token transaction built",
		"operation", op,
		"mint", r.MintAddress.String(),
		"fee_payer", r.FeePayer.String(),
		"instructions", r.InstructionCount,
		"created_accounts", len(r.CreatedAccounts),
		"base_units", r.BaseUnits,
		"blockhash", r.Blockhash.String(),
	)
	if s.metrics != nil {
		s.metrics.RecordBuild(op, "success", duration)
		s.metrics.RecordEnvelopeInstructions(op, r.InstructionCount)
		s.metrics.RecordAccountsCreated(op, len(r.CreatedAccounts))
	}
}

func baseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	units, err := ToBaseUnits(amount, decimals)
	if err != nil {
		return 0, err
	}
	if units == 0 {
		return 0, invalidAmount("amount %s is smaller than one base unit at %d decimals", amount.String(), decimals)
	}
	return units, nil
}

type field struct {
	name  string
	value string
}

func parseAddresses(fields ...field) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, len(fields))
	for i, f := range fields {
		pk, err := parseAddress(f.name, f.value)
		if err != nil {
			return nil, err
		}
		out[i] = pk
	}
	return out, nil
}

func parseAddress(name, value string) (solana.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return solana.PublicKey{}, invalidInput("%s is required", name)
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, invalidInput("%s %q is not a valid address: %v", name, value, err)
	}
	return pk, nil
}
