package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natspkg "github.com/brojonat/tokenforge/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams build events.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to build events",
		ArgsUsage: "[operation]",
		Description: `Subscribe to build events published to NATS JetStream.

Events are published to the subject builds.{operation}. Without an operation
every build is streamed.

Example:
  tokenforge nats subscribe mint_token --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "tokenforge-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("accepts at most one argument: operation")
			}
			subject, err := subjectFor(c.Args().First())
			if err != nil {
				return err
			}

			return streamBuilds(c, subject, c.Bool("durable"), c.String("consumer-name"))
		},
	}
}

// subjectFor returns the subject for one operation, or all of them.
func subjectFor(operation string) (string, error) {
	if operation == "" {
		return natspkg.StreamSubjects, nil
	}
	if strings.ContainsAny(operation, ".*> ") {
		return "", fmt.Errorf("invalid operation %q", operation)
	}
	return natspkg.SubjectPrefix + operation, nil
}

func streamBuilds(c *cli.Context, subject string, durable bool, consumerName string) error {
	jsonOutput := wantJSON(c)

	nc, err := natspkg.Connect(c.String("nats-url"), "tokenforge-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "Subscribed to %s (Ctrl+C to stop)\n\n", subject)
	}

	msgChan := make(chan jetstream.Msg, 16)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.BuildEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "failed to decode event on %s: %v\n", msg.Subject(), err)
				msg.Nak()
				continue
			}
			count++

			if jsonOutput {
				if err := outputJSON(c, event); err != nil {
					return err
				}
			} else {
				printEvent(c, &event)
			}

			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nReceived %d build events\n", count)
			}
			return nil
		}
	}
}

func printEvent(c *cli.Context, event *natspkg.BuildEvent) {
	out := c.App.Writer
	fmt.Fprintf(out, "Operation:    %s (%s)\n", event.Operation, event.Network)
	fmt.Fprintf(out, "Payer:        %s\n", event.Payer)
	fmt.Fprintf(out, "Mint:         %s\n", event.Mint)
	if event.BaseUnits > 0 {
		fmt.Fprintf(out, "Amount:       %d base units (%d decimals)\n", event.BaseUnits, event.Decimals)
	}
	fmt.Fprintf(out, "Instructions: %d\n", event.InstructionCount)
	if len(event.CreatedAccounts) > 0 {
		fmt.Fprintf(out, "Creates:      %s\n", strings.Join(event.CreatedAccounts, ", "))
	}
	fmt.Fprintf(out, "Signers:      %s\n", strings.Join(event.MissingSigners, ", "))
	fmt.Fprintf(out, "Blockhash:    %s\n", event.Blockhash)
	fmt.Fprintf(out, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the TOKEN_BUILDS JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "tokenforge-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, info)
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(out, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(out, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(out, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(out, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(out, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(out, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(out, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(out, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(out, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(out, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
