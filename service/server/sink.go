package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/tokenforge/service/db"
	"github.com/brojonat/tokenforge/service/metrics"
	"github.com/brojonat/tokenforge/service/nats"
	"github.com/brojonat/tokenforge/service/tokentx"
)

const sideEffectTimeout = 5 * time.Second

// buildSink records successful builds in the store and announces them on
// NATS. Both sinks are optional and neither can fail the request. They run
// after the response is flushed, each bounded by sideEffectTimeout.
type buildSink struct {
	network   string
	store     *db.Store
	publisher nats.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func (s *buildSink) record(ctx context.Context, res *tokentx.Result) {
	if s == nil || (s.store == nil && s.publisher == nil) {
		return
	}

	// Records survive a client that disconnects once it has the response.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	event := nats.FromResult(res, s.network)

	if s.store != nil {
		_, err := s.store.CreateBuild(ctx, db.CreateBuildParams{
			Operation:            event.Operation,
			Network:              event.Network,
			Payer:                event.Payer,
			Mint:                 event.Mint,
			Blockhash:            event.Blockhash,
			LastValidBlockHeight: int64(event.LastValidBlockHeight),
			InstructionCount:     int32(event.InstructionCount),
			CreatedAccounts:      event.CreatedAccounts,
			Encoding:             event.Encoding,
		})
		if err != nil {
			s.fail(ctx, "db", res.Operation, err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishBuild(ctx, event); err != nil {
			s.fail(ctx, "nats", res.Operation, err)
		}
	}
}

func (s *buildSink) fail(ctx context.Context, sink, op string, err error) {
	s.logger.WarnContext(ctx, "failed to record build",
		"sink", sink,
		"operation", op,
		"error", err,
	)
	if s.metrics != nil {
		s.metrics.RecordSideEffectError(sink)
	}
}
