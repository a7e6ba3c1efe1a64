package model

import "time"

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationMoved     = "reservation.moved"
)

// ReservationEvent is the payload published after a ledger write commits.
type ReservationEvent struct {
	EventType         string     `json:"event_type"`
	ReservationID     string     `json:"reservation_id"`
	PlaceID           string     `json:"place_id"`
	UserID            string     `json:"user_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	PreviousStartTime *time.Time `json:"previous_start_time,omitempty"`
	PreviousEndTime   *time.Time `json:"previous_end_time,omitempty"`
	Status            string     `json:"status"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

func NewReservationEvent(eventType string, r *Reservation) ReservationEvent {
	return ReservationEvent{
		EventType:     eventType,
		ReservationID: r.ID,
		PlaceID:       r.PlaceID,
		UserID:        r.UserID,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Status:        r.Status,
		OccurredAt:    time.Now().UTC(),
	}
}
