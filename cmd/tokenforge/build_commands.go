package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brojonat/tokenforge/client"
	"github.com/brojonat/tokenforge/service/solana"
	"github.com/brojonat/tokenforge/service/tokentx"
	"github.com/urfave/cli/v2"
)

// tokenBuilder is satisfied by the HTTP client and by localBuilder, so the
// same subcommands drive a remote server or the RPC endpoint directly.
type tokenBuilder interface {
	CreateToken(ctx context.Context, payer string, decimals int) (*client.Transaction, error)
	MintToken(ctx context.Context, payer, mint, recipient, amount string) (*client.Transaction, error)
	TransferToken(ctx context.Context, payer, from, to, mint, amount string) (*client.Transaction, error)
	BurnToken(ctx context.Context, payer, account, mint, amount string) (*client.Transaction, error)
	DelegateToken(ctx context.Context, payer, owner, delegate, mint, amount string) (*client.Transaction, error)
}

type builderFactory func(c *cli.Context) (tokenBuilder, error)

func builderCommand(name, usage string, newBuilder builderFactory) *cli.Command {
	cmd := &cli.Command{
		Name:  name,
		Usage: usage,
		Subcommands: []*cli.Command{
			createTokenCommand(newBuilder),
			mintCommand(newBuilder),
			transferCommand(newBuilder),
			burnCommand(newBuilder),
			delegateCommand(newBuilder),
		},
	}
	if name == "local" {
		cmd.Flags = []cli.Flag{
			&cli.StringFlag{
				Name:    "commitment",
				Usage:   "Commitment for ledger reads (processed, confirmed, finalized)",
				EnvVars: []string{"SOLANA_COMMITMENT"},
				Value:   "confirmed",
			},
			&cli.StringFlag{
				Name:    "encoding",
				Usage:   "Envelope encoding (base64, base58)",
				EnvVars: []string{"ENVELOPE_ENCODING"},
				Value:   "base64",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "RPC request timeout",
				Value: 30 * time.Second,
			},
		}
	}
	return cmd
}

func payerFlag() cli.Flag {
	return &cli.StringFlag{Name: "payer", Aliases: []string{"p"}, Usage: "Fee payer address", Required: true}
}

func mintFlag() cli.Flag {
	return &cli.StringFlag{Name: "mint", Aliases: []string{"m"}, Usage: "Mint address", Required: true}
}

func amountFlag() cli.Flag {
	return &cli.StringFlag{Name: "amount", Aliases: []string{"a"}, Usage: "Amount in whole tokens, e.g. 2.5", Required: true}
}

func createTokenCommand(newBuilder builderFactory) *cli.Command {
	return &cli.Command{
		Name:  "create-token",
		Usage: "Build a transaction creating a new mint owned by the payer",
		Flags: []cli.Flag{
			payerFlag(),
			&cli.IntFlag{Name: "decimals", Aliases: []string{"d"}, Usage: "Mint decimals (0-255)", Required: true},
		},
		Action: func(c *cli.Context) error {
			b, err := newBuilder(c)
			if err != nil {
				return err
			}
			tx, err := b.CreateToken(c.Context, c.String("payer"), c.Int("decimals"))
			if err != nil {
				return fmt.Errorf("failed to build create-token transaction: %w", err)
			}
			return printTransaction(c, tx)
		},
	}
}

func mintCommand(newBuilder builderFactory) *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Build a transaction minting tokens to a recipient",
		Flags: []cli.Flag{
			payerFlag(),
			mintFlag(),
			&cli.StringFlag{Name: "recipient", Aliases: []string{"r"}, Usage: "Recipient wallet address", Required: true},
			amountFlag(),
		},
		Action: func(c *cli.Context) error {
			b, err := newBuilder(c)
			if err != nil {
				return err
			}
			tx, err := b.MintToken(c.Context, c.String("payer"), c.String("mint"), c.String("recipient"), c.String("amount"))
			if err != nil {
				return fmt.Errorf("failed to build mint transaction: %w", err)
			}
			return printTransaction(c, tx)
		},
	}
}

func transferCommand(newBuilder builderFactory) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Build a transaction transferring tokens between wallets",
		Flags: []cli.Flag{
			payerFlag(),
			&cli.StringFlag{Name: "from", Usage: "Source wallet address", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Destination wallet address", Required: true},
			mintFlag(),
			amountFlag(),
		},
		Action: func(c *cli.Context) error {
			b, err := newBuilder(c)
			if err != nil {
				return err
			}
			tx, err := b.TransferToken(c.Context, c.String("payer"), c.String("from"), c.String("to"), c.String("mint"), c.String("amount"))
			if err != nil {
				return fmt.Errorf("failed to build transfer transaction: %w", err)
			}
			return printTransaction(c, tx)
		},
	}
}

func burnCommand(newBuilder builderFactory) *cli.Command {
	return &cli.Command{
		Name:  "burn",
		Usage: "Build a transaction burning tokens from a wallet",
		Flags: []cli.Flag{
			payerFlag(),
			&cli.StringFlag{Name: "account", Usage: "Wallet whose tokens are burned", Required: true},
			mintFlag(),
			amountFlag(),
		},
		Action: func(c *cli.Context) error {
			b, err := newBuilder(c)
			if err != nil {
				return err
			}
			tx, err := b.BurnToken(c.Context, c.String("payer"), c.String("account"), c.String("mint"), c.String("amount"))
			if err != nil {
				return fmt.Errorf("failed to build burn transaction: %w", err)
			}
			return printTransaction(c, tx)
		},
	}
}

func delegateCommand(newBuilder builderFactory) *cli.Command {
	return &cli.Command{
		Name:  "delegate",
		Usage: "Build a transaction approving a delegate to spend tokens",
		Flags: []cli.Flag{
			payerFlag(),
			&cli.StringFlag{Name: "owner", Usage: "Token owner wallet address", Required: true},
			&cli.StringFlag{Name: "delegate", Usage: "Delegate address", Required: true},
			mintFlag(),
			amountFlag(),
		},
		Action: func(c *cli.Context) error {
			b, err := newBuilder(c)
			if err != nil {
				return err
			}
			tx, err := b.DelegateToken(c.Context, c.String("payer"), c.String("owner"), c.String("delegate"), c.String("mint"), c.String("amount"))
			if err != nil {
				return fmt.Errorf("failed to build delegate transaction: %w", err)
			}
			return printTransaction(c, tx)
		},
	}
}

func printTransaction(c *cli.Context, tx *client.Transaction) error {
	if wantJSON(c) {
		return outputJSON(c, tx)
	}

	w := c.App.Writer
	if tx.MintPublicKey != "" {
		fmt.Fprintf(w, "Mint:            %s\n", tx.MintPublicKey)
	}
	fmt.Fprintf(w, "Fee Payer:       %s\n", tx.FeePayer)
	fmt.Fprintf(w, "Blockhash:       %s (valid until height %d)\n", tx.Blockhash, tx.LastValidBlockHeight)
	fmt.Fprintf(w, "Missing Signers: %s\n", strings.Join(tx.MissingSigners, ", "))
	if len(tx.CreatedAccounts) > 0 {
		fmt.Fprintf(w, "Creates:         %s\n", strings.Join(tx.CreatedAccounts, ", "))
	}
	fmt.Fprintf(w, "Transaction (%s):\n%s\n", tx.Encoding, tx.EncodedTransaction)
	return nil
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newRemoteBuilder(c *cli.Context) (tokenBuilder, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, nil, cliLogger()), nil
}

func newLocalBuilder(c *cli.Context) (tokenBuilder, error) {
	endpoint := c.String("rpc-url")
	if endpoint == "" {
		var err error
		endpoint, err = solana.EndpointForNetwork(c.String("network"))
		if err != nil {
			return nil, err
		}
	}

	commitment, err := solana.ParseCommitment(c.String("commitment"))
	if err != nil {
		return nil, err
	}
	encoding, err := tokentx.ParseEncoding(c.String("encoding"))
	if err != nil {
		return nil, err
	}

	logger := cliLogger()
	ledger := solana.NewClient(solana.NewRPCClient(endpoint, c.Duration("timeout")), solana.EndpointLabel(endpoint), commitment, nil, logger)
	svc := tokentx.NewService(ledger,
		tokentx.WithEncoding(encoding),
		tokentx.WithLogger(logger),
	)
	return &localBuilder{svc: svc}, nil
}

// localBuilder adapts the service to tokenBuilder.
type localBuilder struct {
	svc *tokentx.Service
}

func (b *localBuilder) CreateToken(ctx context.Context, payer string, decimals int) (*client.Transaction, error) {
	res, err := b.svc.CreateToken(ctx, tokentx.CreateTokenParams{Payer: payer, Decimals: decimals})
	if err != nil {
		return nil, err
	}
	return toTransaction(res, true), nil
}

func (b *localBuilder) MintToken(ctx context.Context, payer, mint, recipient, amount string) (*client.Transaction, error) {
	a, err := tokentx.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	res, err := b.svc.MintToken(ctx, tokentx.MintTokenParams{Payer: payer, Mint: mint, Recipient: recipient, Amount: a})
	if err != nil {
		return nil, err
	}
	return toTransaction(res, false), nil
}

func (b *localBuilder) TransferToken(ctx context.Context, payer, from, to, mint, amount string) (*client.Transaction, error) {
	a, err := tokentx.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	res, err := b.svc.TransferToken(ctx, tokentx.TransferTokenParams{Payer: payer, From: from, To: to, Mint: mint, Amount: a})
	if err != nil {
		return nil, err
	}
	return toTransaction(res, false), nil
}

func (b *localBuilder) BurnToken(ctx context.Context, payer, account, mint, amount string) (*client.Transaction, error) {
	a, err := tokentx.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	res, err := b.svc.BurnToken(ctx, tokentx.BurnTokenParams{Payer: payer, Account: account, Mint: mint, Amount: a})
	if err != nil {
		return nil, err
	}
	return toTransaction(res, false), nil
}

func (b *localBuilder) DelegateToken(ctx context.Context, payer, owner, delegate, mint, amount string) (*client.Transaction, error) {
	a, err := tokentx.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	res, err := b.svc.DelegateToken(ctx, tokentx.DelegateTokenParams{Payer: payer, Owner: owner, Delegate: delegate, Mint: mint, Amount: a})
	if err != nil {
		return nil, err
	}
	return toTransaction(res, false), nil
}

func toTransaction(res *tokentx.Result, withMint bool) *client.Transaction {
	tx := &client.Transaction{
		EncodedTransaction:   res.Transaction,
		Encoding:             string(res.Encoding),
		FeePayer:             res.FeePayer.String(),
		Blockhash:            res.Blockhash.String(),
		LastValidBlockHeight: res.LastValidBlockHeight,
		MissingSigners:       make([]string, 0, len(res.MissingSigners)),
	}
	if withMint {
		tx.MintPublicKey = res.MintAddress.String()
	}
	for _, s := range res.MissingSigners {
		tx.MissingSigners = append(tx.MissingSigners, s.String())
	}
	for _, a := range res.CreatedAccounts {
		tx.CreatedAccounts = append(tx.CreatedAccounts, a.String())
	}
	return tx
}
