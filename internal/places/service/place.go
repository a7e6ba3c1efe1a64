package service

import (
	"context"
	"errors"
	"sync"

	placeserrors "cuworking/internal/places/errors"
	"cuworking/internal/places/repository"
	"cuworking/internal/places/validator"
	"cuworking/pkg/config"
	apperrors "cuworking/pkg/errors"
	"cuworking/pkg/model"
	"cuworking/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// GuardStore owns the per-place guard documents of the reservation ledger.
type GuardStore interface {
	Touch(ctx context.Context, placeID string) error
	Delete(ctx context.Context, placeID string) error
}

// ReservationCleaner removes every reservation of a place.
type ReservationCleaner interface {
	DeleteByPlace(ctx context.Context, placeID string) (int64, error)
}

type PlaceService interface {
	Create(ctx context.Context, req *model.CreatePlaceRequest) (*model.Place, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Place, int64, error)
	Delete(ctx context.Context, id string) error
}

type placeService struct {
	repo         repository.PlaceRepository
	guards       GuardStore
	reservations ReservationCleaner
	validator    *validator.PlaceValidator
	cfg          *config.Config
}

func NewPlaceService(
	repo repository.PlaceRepository,
	guards GuardStore,
	reservations ReservationCleaner,
	validator *validator.PlaceValidator,
	cfg *config.Config,
) PlaceService {
	return &placeService{
		repo:         repo,
		guards:       guards,
		reservations: reservations,
		validator:    validator,
		cfg:          cfg,
	}
}

func (s *placeService) Create(ctx context.Context, req *model.CreatePlaceRequest) (*model.Place, error) {
	place := &model.Place{
		Name:        sanitizer.NormalizeName(req.Name),
		Location:    sanitizer.NormalizeLocation(req.Location),
		Description: sanitizer.SanitizeDescription(req.Description),
		IsAvailable: true,
	}
	if req.IsAvailable != nil {
		place.IsAvailable = *req.IsAvailable
	}

	if err := s.validator.Validate(place); err != nil {
		s.cfg.Log.Warn("Place validation failed",
			"name", place.Name,
			"error", err,
		)
		return nil, apperrors.Validation("Place validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	var created *model.Place
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		candidate := *place
		if err := s.repo.Create(sessCtx, &candidate); err != nil {
			return err
		}
		if err := s.guards.Touch(sessCtx, candidate.ID); err != nil {
			return err
		}
		created = &candidate
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create place", "name", place.Name, "error", err)
		return nil, apperrors.Internal("Failed to create place", err)
	}

	s.cfg.Log.Info("Place created successfully",
		"id", created.ID,
		"name", created.Name,
	)
	return created, nil
}

func (s *placeService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Place, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var places []*model.Place
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count places", "error", errCount)
			errCount = apperrors.Internal("Failed to count places", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		places, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list places", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve places", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return places, count, nil
}

// Delete removes the place together with its guard and every reservation
// of it. Touching the guard first makes a concurrent ledger write on the
// place conflict with the deletion.
func (s *placeService) Delete(ctx context.Context, id string) error {
	id = sanitizer.NormalizeID(id)
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return apperrors.NotFoundWithID("Place", id)
	}

	var removed int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.guards.Touch(sessCtx, id); err != nil {
			return err
		}
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return err
		}
		n, err := s.reservations.DeleteByPlace(sessCtx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.guards.Delete(sessCtx, id)
	})
	if err != nil {
		if errors.Is(err, placeserrors.ErrNotFound) || errors.Is(err, placeserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Place", id)
		}
		s.cfg.Log.Error("Failed to delete place", "id", id, "error", err)
		return apperrors.Internal("Failed to delete place", err)
	}

	s.cfg.Log.Info("Place deleted successfully",
		"id", id,
		"reservations_removed", removed,
	)
	return nil
}
