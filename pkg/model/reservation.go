package model

import "time"

const (
	ReservationActive    = "active"
	ReservationCancelled = "cancelled"
)

type Reservation struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PlaceID   string    `json:"place_id" bson:"place_id" validate:"required,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status    string    `json:"status" bson:"status" validate:"required,oneof=active cancelled"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// ReservationWindow is a parsed, UTC time range requested for a place.
type ReservationWindow struct {
	PlaceID   string    `json:"place_id" validate:"required,mongodb"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// CreateReservationRequest is the wire form of a new reservation. Times stay
// strings here so the handler can accept both zoned and naive ISO-8601.
type CreateReservationRequest struct {
	PlaceID   string `json:"place_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type MoveReservationRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ReservationGuard is the per-place document every ledger write bumps
// first inside its transaction.
type ReservationGuard struct {
	PlaceID   string    `bson:"_id" json:"place_id"`
	Version   int64     `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
