package ledger

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/dto"
	"github.com/Additional-Code/salesledger/internal/messaging"
	"github.com/Additional-Code/salesledger/internal/pipeline"
	"github.com/Additional-Code/salesledger/internal/runlog"
	"github.com/Additional-Code/salesledger/internal/worker"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/salesledger/worker/ledger")

// Runner executes a ledger run synchronously.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*runlog.Run, error)
}

// Module registers ledger worker handlers.
var Module = fx.Module("worker_ledger",
	fx.Provide(
		fx.Annotate(
			func(svc *pipeline.Service, client messaging.Client, logger *zap.Logger) worker.HandlerRegistration {
				return NewRunRequestedHandler(svc, client.RequestsTopic(), logger)
			},
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewRunRequestedHandler runs the pipeline for every request message.
// Malformed or invalid requests are logged and committed; other failures
// leave the message uncommitted.
func NewRunRequestedHandler(runner Runner, topic string, logger *zap.Logger) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.ledger.run", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var body dto.RunRequest
		if err := json.Unmarshal(msg.Value, &body); err != nil {
			logger.Error("dropping undecodable run request", zap.Int64("offset", msg.Offset), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}

		req, err := body.ToPipeline()
		if err == nil {
			var run *runlog.Run
			run, err = runner.Run(ctx, req)
			if run != nil {
				span.SetAttributes(attribute.String("run.id", run.ID), attribute.String("run.status", run.Status))
			}
		}
		if err == nil {
			return nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		if errorbank.Is(err, errorbank.KindBadRequest) || errorbank.Is(err, errorbank.KindNotFound) || errorbank.Is(err, errorbank.KindConflict) {
			logger.Warn("dropping rejected run request", zap.Int64("offset", msg.Offset), zap.Error(err))
			return nil
		}
		return err
	}

	return worker.HandlerRegistration{
		Topic:   topic,
		Handler: handler,
	}
}
