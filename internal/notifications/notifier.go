package notifications

import (
	"context"
	"fmt"
	"time"

	"cuworking/pkg/logger"
	"cuworking/pkg/model"
)

const timeLayout = "2006-01-02 15:04 MST"

// Notification is what a user is told about one reservation event.
type Notification struct {
	UserID        string
	ReservationID string
	Subject       string
	Body          string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier delivers notifications to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.log.Info("Notification sent",
		"user_id", notification.UserID,
		"reservation_id", notification.ReservationID,
		"subject", notification.Subject,
		"body", notification.Body,
	)
	return nil
}

// Compose renders the notification for a reservation event. Unknown event
// types yield an error.
func Compose(event model.ReservationEvent) (Notification, error) {
	n := Notification{
		UserID:        event.UserID,
		ReservationID: event.ReservationID,
	}
	window := formatWindow(event.StartTime, event.EndTime)

	switch event.EventType {
	case model.EventReservationCreated:
		n.Subject = "Reservation confirmed"
		n.Body = fmt.Sprintf("Place %s is reserved for you %s.", event.PlaceID, window)
	case model.EventReservationCancelled:
		n.Subject = "Reservation cancelled"
		n.Body = fmt.Sprintf("Your reservation of place %s %s was cancelled.", event.PlaceID, window)
	case model.EventReservationMoved:
		n.Subject = "Reservation moved"
		if event.PreviousStartTime != nil && event.PreviousEndTime != nil {
			n.Body = fmt.Sprintf("Your reservation of place %s moved from %s to %s.",
				event.PlaceID, formatWindow(*event.PreviousStartTime, *event.PreviousEndTime), window)
		} else {
			n.Body = fmt.Sprintf("Your reservation of place %s moved to %s.", event.PlaceID, window)
		}
	default:
		return Notification{}, fmt.Errorf("unknown event type %q", event.EventType)
	}
	return n, nil
}

func formatWindow(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
}
