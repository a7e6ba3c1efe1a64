package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrNotActive = errors.New("reservation is not active")

	ErrTimeConflict = errors.New("reservation overlaps an active reservation")

	ErrPlaceNotFound = errors.New("place not found")
)
