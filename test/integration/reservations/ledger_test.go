//go:build integration

package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	placerepository "cuworking/internal/places/repository"
	placeservice "cuworking/internal/places/service"
	placevalidator "cuworking/internal/places/validator"
	"cuworking/internal/reservations/events"
	"cuworking/internal/reservations/repository"
	"cuworking/internal/reservations/service"
	"cuworking/internal/reservations/validator"
	apperrors "cuworking/pkg/errors"
	"cuworking/pkg/model"
	"cuworking/test/integration/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	alice = "65f1a2b3c4d5e6f708192b01"
	bob   = "65f1a2b3c4d5e6f708192b02"
)

type fixture struct {
	mongo        *testutil.MongoHelper
	reservations service.ReservationService
	places       placeservice.PlaceService
	placeID      string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	h := testutil.NewMongoHelper(t)
	cfg := h.Config

	reservationRepo := repository.NewMongoReservationRepository(cfg)
	guardRepo := repository.NewGuardRepository(cfg)
	placeRepo := placerepository.NewMongoPlaceRepository(cfg)

	places := placeservice.NewPlaceService(placeRepo, guardRepo, reservationRepo, placevalidator.NewPlaceValidator(cfg.Log), cfg)
	reservations := service.NewReservationService(
		reservationRepo, guardRepo, placeRepo,
		validator.NewReservationValidator(cfg.Log),
		events.NoopPublisher{},
		cfg,
	)

	place, err := places.Create(context.Background(), &model.CreatePlaceRequest{Name: "Room 1", Location: "Floor 2"})
	require.NoError(t, err)

	return &fixture{mongo: h, reservations: reservations, places: places, placeID: place.ID}
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 0, 0, 0, time.UTC)
}

func (f *fixture) create(userID string, start, end time.Time) (*model.Reservation, error) {
	return f.reservations.Create(context.Background(), userID, &model.ReservationWindow{
		PlaceID: f.placeID, StartTime: start, EndTime: end,
	})
}

func TestLedger_ConcurrentOverlappingCreates(t *testing.T) {
	f := setup(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.create(alice, at(10), at(12))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
	assert.EqualValues(t, 1, f.mongo.CountDocuments(t, repository.CollectionName, bson.M{"status": model.ReservationActive}))
}

func TestLedger_AdjacentReservationsCoexist(t *testing.T) {
	f := setup(t)

	_, err := f.create(alice, at(10), at(12))
	require.NoError(t, err)
	_, err = f.create(bob, at(12), at(14))
	require.NoError(t, err)
	_, err = f.create(bob, at(8), at(10))
	require.NoError(t, err)

	_, err = f.create(bob, at(11), at(13))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestLedger_CommittedWritesBumpGuardVersion(t *testing.T) {
	f := setup(t)

	var before model.ReservationGuard
	f.mongo.FindOne(t, repository.GuardCollectionName, bson.M{"_id": f.placeID}, &before)

	r, err := f.create(alice, at(10), at(12))
	require.NoError(t, err)
	_, err = f.reservations.Cancel(context.Background(), r.ID, alice)
	require.NoError(t, err)

	// A rolled back conflict leaves the version alone.
	_, err = f.create(bob, at(9), at(13))
	require.NoError(t, err)
	_, err = f.create(alice, at(10), at(11))
	require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	var after model.ReservationGuard
	f.mongo.FindOne(t, repository.GuardCollectionName, bson.M{"_id": f.placeID}, &after)
	assert.Equal(t, f.placeID, after.PlaceID)
	assert.Equal(t, before.Version+3, after.Version)
	assert.False(t, after.UpdatedAt.IsZero())
}

func TestLedger_CancelFreesWindowOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.create(alice, at(10), at(12))
	require.NoError(t, err)

	cancelled, err := f.reservations.Cancel(ctx, r.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, cancelled.Status)

	_, err = f.reservations.Cancel(ctx, r.ID, alice)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = f.create(bob, at(10), at(12))
	assert.NoError(t, err)
}

func TestLedger_ForeignReservationIsNotFound(t *testing.T) {
	f := setup(t)

	r, err := f.create(alice, at(10), at(12))
	require.NoError(t, err)

	_, err = f.reservations.Cancel(context.Background(), r.ID, bob)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.reservations.Move(context.Background(), r.ID, bob, at(13), at(14))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestLedger_MoveWithinOwnWindowAndIntoConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mine, err := f.create(alice, at(10), at(12))
	require.NoError(t, err)
	_, err = f.create(bob, at(14), at(16))
	require.NoError(t, err)

	moved, err := f.reservations.Move(ctx, mine.ID, alice, at(11), at(13))
	require.NoError(t, err)
	assert.True(t, at(11).Equal(moved.StartTime))

	_, err = f.reservations.Move(ctx, mine.ID, alice, at(13), at(15))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	list, err := f.reservations.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, at(11).Equal(list[0].StartTime), "failed move must leave the reservation unchanged")
}

func TestLedger_DeletingPlaceCascades(t *testing.T) {
	f := setup(t)

	_, err := f.create(alice, at(10), at(12))
	require.NoError(t, err)

	require.NoError(t, f.places.Delete(context.Background(), f.placeID))

	assert.Zero(t, f.mongo.CountDocuments(t, repository.CollectionName, bson.M{"place_id": f.placeID}))
	assert.Zero(t, f.mongo.CountDocuments(t, repository.GuardCollectionName, bson.M{"_id": f.placeID}))

	_, err = f.create(alice, at(13), at(14))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
