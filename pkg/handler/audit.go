package handler

import (
	"context"
	"log/slog"

	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/eventbus"
)

// Audit writes one structured record per ledger event to logger.
func Audit(logger *slog.Logger) eventbus.HandlerFunc {
	log := logger.With("component", "audit")
	return func(ctx context.Context, e events.Event) error {
		switch evt := e.(type) {
		case *events.TransactionCreated:
			logCreated(ctx, log, *evt)
		case events.TransactionCreated:
			logCreated(ctx, log, evt)
		case *events.TransactionSettled:
			logSettled(ctx, log, *evt)
		case events.TransactionSettled:
			logSettled(ctx, log, evt)
		default:
			log.WarnContext(ctx, "unexpected event", "event_type", e.Type())
		}
		return nil
	}
}

func logCreated(ctx context.Context, log *slog.Logger, evt events.TransactionCreated) {
	attrs := []any{
		"transaction_id", evt.TransactionID,
		"user_id", evt.UserID,
		"kind", evt.Kind,
		"amount", evt.Amount.String(),
		"operation_code", evt.OperationCode,
	}
	if evt.AgentID != nil {
		attrs = append(attrs, "agent_id", *evt.AgentID)
	}
	if evt.ExpectedAmount != nil {
		attrs = append(attrs, "expected_amount", evt.ExpectedAmount.String())
	}
	log.InfoContext(ctx, "transaction created", attrs...)
}

func logSettled(ctx context.Context, log *slog.Logger, evt events.TransactionSettled) {
	attrs := []any{
		"transaction_id", evt.TransactionID,
		"user_id", evt.UserID,
		"kind", evt.Kind,
		"decision", evt.Decision,
		"amount", evt.Amount.String(),
		"source", evt.Source,
	}
	if evt.PaymentID != "" {
		attrs = append(attrs, "payment_id", evt.PaymentID)
	}
	log.InfoContext(ctx, "transaction settled", attrs...)
}
