package service

import (
	"context"
	"errors"
	"time"

	reservationserrors "cuworking/internal/reservations/errors"
	"cuworking/internal/reservations/repository"
	"cuworking/internal/reservations/validator"
	"cuworking/pkg/config"
	apperrors "cuworking/pkg/errors"
	"cuworking/pkg/model"
	"cuworking/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// PlaceLookup resolves whether a place exists. Implemented by the places
// repository.
type PlaceLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// EventPublisher receives lifecycle events after a ledger write commits.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ReservationEvent) error
}

type ReservationService interface {
	Create(ctx context.Context, userID string, window *model.ReservationWindow) (*model.Reservation, error)
	List(ctx context.Context, userID, status string) ([]*model.Reservation, error)
	Cancel(ctx context.Context, id, userID string) (*model.Reservation, error)
	Move(ctx context.Context, id, userID string, start, end time.Time) (*model.Reservation, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	guards    repository.GuardRepository
	places    PlaceLookup
	validator *validator.ReservationValidator
	publisher EventPublisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	guards repository.GuardRepository,
	places PlaceLookup,
	validator *validator.ReservationValidator,
	publisher EventPublisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		guards:    guards,
		places:    places,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, userID string, window *model.ReservationWindow) (*model.Reservation, error) {
	s.sanitize(window)
	if err := s.validator.ValidateWindow(window); err != nil {
		s.cfg.Log.Warn("Reservation validation failed",
			"place_id", window.PlaceID,
			"user_id", userID,
			"error", err,
		)
		return nil, validationError(err)
	}

	var created *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// The transaction body may run more than once, so nothing from a
		// previous attempt is reused.
		created = nil

		if err := s.guards.Touch(sessCtx, window.PlaceID); err != nil {
			return err
		}

		exists, err := s.places.Exists(sessCtx, window.PlaceID)
		if err != nil {
			return err
		}
		if !exists {
			return reservationserrors.ErrPlaceNotFound
		}

		if err := s.checkOverlap(sessCtx, window.PlaceID, window.StartTime, window.EndTime, ""); err != nil {
			return err
		}

		reservation := &model.Reservation{
			PlaceID:   window.PlaceID,
			UserID:    userID,
			StartTime: window.StartTime,
			EndTime:   window.EndTime,
			Status:    model.ReservationActive,
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return err
		}
		created = reservation
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, "Failed to create reservation", "place_id", window.PlaceID, "user_id", userID)
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", created.ID,
		"place_id", created.PlaceID,
		"user_id", created.UserID,
		"start_time", created.StartTime,
		"end_time", created.EndTime,
	)
	s.publish(ctx, model.NewReservationEvent(model.EventReservationCreated, created))
	return created, nil
}

func (s *reservationService) List(ctx context.Context, userID, status string) ([]*model.Reservation, error) {
	status = sanitizer.NormalizeID(status)
	switch status {
	case "", model.ReservationActive, model.ReservationCancelled:
	default:
		return nil, apperrors.InvalidInput("status must be one of: active cancelled")
	}

	reservations, err := s.repo.FindByUser(ctx, userID, status)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return reservations, nil
}

func (s *reservationService) Cancel(ctx context.Context, id, userID string) (*model.Reservation, error) {
	id = sanitizer.NormalizeID(id)

	var cancelled *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		cancelled = nil

		reservation, err := s.findActive(sessCtx, id, userID)
		if err != nil {
			return err
		}

		if err := s.guards.Touch(sessCtx, reservation.PlaceID); err != nil {
			return err
		}

		updated, err := s.repo.UpdateStatus(sessCtx, id, model.ReservationActive, model.ReservationCancelled)
		if err != nil {
			return err
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, "Failed to cancel reservation", "id", id, "user_id", userID)
	}

	s.cfg.Log.Info("Reservation cancelled successfully",
		"id", cancelled.ID,
		"place_id", cancelled.PlaceID,
		"user_id", cancelled.UserID,
	)
	s.publish(ctx, model.NewReservationEvent(model.EventReservationCancelled, cancelled))
	return cancelled, nil
}

func (s *reservationService) Move(ctx context.Context, id, userID string, start, end time.Time) (*model.Reservation, error) {
	id = sanitizer.NormalizeID(id)
	start, end = storedPrecision(start), storedPrecision(end)

	var previous, moved *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		previous, moved = nil, nil

		reservation, err := s.findActive(sessCtx, id, userID)
		if err != nil {
			return err
		}

		if err := s.validator.ValidateRange(&model.ReservationWindow{StartTime: start, EndTime: end}); err != nil {
			return err
		}

		if err := s.guards.Touch(sessCtx, reservation.PlaceID); err != nil {
			return err
		}

		if err := s.checkOverlap(sessCtx, reservation.PlaceID, start, end, id); err != nil {
			return err
		}

		updated, err := s.repo.UpdateTimes(sessCtx, id, start, end)
		if err != nil {
			return err
		}
		previous, moved = reservation, updated
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, "Failed to move reservation", "id", id, "user_id", userID)
	}

	s.cfg.Log.Info("Reservation moved successfully",
		"id", moved.ID,
		"place_id", moved.PlaceID,
		"from", previous.StartTime,
		"to", moved.StartTime,
	)
	event := model.NewReservationEvent(model.EventReservationMoved, moved)
	event.PreviousStartTime = &previous.StartTime
	event.PreviousEndTime = &previous.EndTime
	s.publish(ctx, event)
	return moved, nil
}

func (s *reservationService) findActive(ctx context.Context, id, userID string) (*model.Reservation, error) {
	reservation, err := s.repo.FindByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !reservation.IsActive() {
		return nil, reservationserrors.ErrNotActive
	}
	return reservation, nil
}

func (s *reservationService) checkOverlap(ctx context.Context, placeID string, start, end time.Time, excludeID string) error {
	overlapping, err := s.repo.FindActiveOverlapping(ctx, placeID, start, end, excludeID, 1)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return reservationserrors.ErrTimeConflict
	}
	return nil
}

// mapError turns what a transaction body returned into the AppError the
// handler writes. Unknown errors are storage failures.
func (s *reservationService) mapError(err error, msg string, args ...any) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		s.cfg.Log.Warn("Reservation validation failed", append(args, "error", err)...)
		return validationError(verrs)
	case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
		return apperrors.NotFound("Reservation")
	case errors.Is(err, reservationserrors.ErrNotActive):
		return apperrors.InvalidState("Reservation is not active")
	case errors.Is(err, reservationserrors.ErrPlaceNotFound):
		s.cfg.Log.Warn("Reservation references unknown place", args...)
		return apperrors.Validation("Reservation validation failed", map[string]any{
			"place_id": "place does not exist",
		})
	case errors.Is(err, reservationserrors.ErrTimeConflict):
		s.cfg.Log.Info("Reservation time conflict", args...)
		return apperrors.Conflict("Place is already reserved for an overlapping time range")
	case apperrors.IsAppError(err):
		return err
	}

	s.cfg.Log.Error(msg, append(args, "error", err)...)
	return apperrors.Internal(msg, err)
}

func (s *reservationService) publish(ctx context.Context, event model.ReservationEvent) {
	if s.publisher == nil {
		return
	}
	// Publishing outlives the request context.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"event_type", event.EventType,
			"id", event.ReservationID,
			"error", err,
		)
	}
}

func (s *reservationService) sanitize(window *model.ReservationWindow) {
	window.PlaceID = sanitizer.NormalizeID(window.PlaceID)
	window.StartTime = storedPrecision(window.StartTime)
	window.EndTime = storedPrecision(window.EndTime)
}

// storedPrecision converts t to what a BSON date keeps: UTC milliseconds.
func storedPrecision(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Reservation validation failed", verrs.Details())
	}
	return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
}
