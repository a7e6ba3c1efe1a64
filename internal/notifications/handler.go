package notifications

import (
	"context"
	"fmt"

	"cuworking/pkg/kafka"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"
)

type Handler struct {
	notifier Notifier
	dedup    Deduplicator
	log      *logger.Logger
}

func NewHandler(notifier Notifier, dedup Deduplicator, log *logger.Logger) *Handler {
	return &Handler{
		notifier: notifier,
		dedup:    dedup,
		log:      log,
	}
}

// Handle is a kafka.MessageHandler for reservation events. Payloads that
// cannot be decoded or rendered are permanent failures and go to the DLQ.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.ReservationEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("decode reservation event", err)
	}

	notification, err := Compose(event)
	if err != nil {
		return kafka.NewPermanentError("compose notification", err)
	}

	eventID := msg.GetEventID()
	if eventID != "" && h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, eventID)
		if err != nil {
			h.log.Warn("Deduplication unavailable, delivering anyway", "event_id", eventID, "error", err)
		} else if !first {
			h.log.Info("Skipping already delivered event",
				"event_id", eventID,
				"event_type", event.EventType,
				"reservation_id", event.ReservationID,
			)
			return nil
		}
	}

	if err := h.notifier.Notify(ctx, notification); err != nil {
		if eventID != "" && h.dedup != nil {
			if forgetErr := h.dedup.Forget(ctx, eventID); forgetErr != nil {
				h.log.Warn("Failed to clear deduplication mark", "event_id", eventID, "error", forgetErr)
			}
		}
		return kafka.NewTransientError(fmt.Sprintf("notify user %s", event.UserID), err)
	}
	return nil
}
