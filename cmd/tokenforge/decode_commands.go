package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/brojonat/tokenforge/service/solana"
	"github.com/brojonat/tokenforge/service/tokentx"
	"github.com/urfave/cli/v2"
)

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode an encoded transaction and show its instructions and signers",
		ArgsUsage: "<encoded-transaction | ->",
		Description: `Decode a transaction returned by "build" or "local" without touching the network.

Pass "-" to read the encoded transaction from stdin.

Example:
  tokenforge build mint --payer ... --json --jq .encodedTransaction | tokenforge decode -`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "Envelope encoding (base64, base58)",
				Value: "base64",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: encoded transaction")
			}

			encoded := c.Args().First()
			if encoded == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				encoded = string(data)
			}

			encoding, err := tokentx.ParseEncoding(c.String("encoding"))
			if err != nil {
				return err
			}

			tx, err := tokentx.DecodeEnvelope(strings.TrimSpace(encoded), encoding)
			if err != nil {
				return fmt.Errorf("failed to decode transaction: %w", err)
			}

			summary, err := solana.DescribeTransaction(tx)
			if err != nil {
				return fmt.Errorf("failed to describe transaction: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, summary)
			}
			printSummary(c.App.Writer, summary)
			return nil
		},
	}
}

func printSummary(out io.Writer, summary *solana.TransactionSummary) {
	fmt.Fprintf(out, "Fee Payer: %s\n", summary.FeePayer)
	fmt.Fprintf(out, "Blockhash: %s\n\n", summary.Blockhash)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNER\tSIGNED")
	for _, s := range summary.Signatures {
		fmt.Fprintf(w, "%s\t%t\n", s.Signer, s.Signed)
	}
	w.Flush()
	fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPROGRAM\tKIND\tAMOUNT\tACCOUNTS")
	for i, ix := range summary.Instructions {
		amount := "-"
		if ix.Amount != nil {
			amount = fmt.Sprintf("%d", *ix.Amount)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, ix.Program, ix.Kind, amount, strings.Join(ix.Accounts, ","))
	}
	w.Flush()
}
