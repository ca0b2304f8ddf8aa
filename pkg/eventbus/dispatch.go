package eventbus

import (
	"context"
	"fmt"
	"log/slog"
)

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDrop
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRetry:
		return "nack"
	default:
		return "drop"
	}
}

// dispatch exécute h sous timeout et décide explicitement entre ACK, NACK et abandon.
// Aucune erreur n'est avalée sans trace.
func dispatch(ctx context.Context, logger *slog.Logger, o subscribeOptions, h Handler, d Delivery) (res outcome) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	attrs := []any{
		"routing_key", d.RoutingKey,
		"event_type", d.Envelope.Type,
		"event_id", d.Envelope.ID,
		"attempt", d.Attempt,
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("handler panic: %v", r)
			res = failure(logger, o, d, err, attrs)
		}
	}()

	err := h(ctx, d)
	if err == nil {
		logger.Debug("event handled", attrs...)
		return outcomeAck
	}
	if IsDiscard(err) {
		logger.Warn("discarding event", append(attrs, "error", err)...)
		return outcomeDrop
	}
	return failure(logger, o, d, err, attrs)
}

func failure(logger *slog.Logger, o subscribeOptions, d Delivery, err error, attrs []any) outcome {
	if o.maxDeliver > 0 && d.Attempt >= o.maxDeliver {
		logger.Error("event handler failed, giving up", append(attrs, "error", err, "max_deliver", o.maxDeliver)...)
		return outcomeDrop
	}
	logger.Error("event handler failed, requeueing", append(attrs, "error", err)...)
	return outcomeRetry
}
