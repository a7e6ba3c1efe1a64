package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "cuworking/internal/reservations/errors"
	"cuworking/pkg/config"
	mongotx "cuworking/pkg/db/mongo"
	"cuworking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByIDForUser(ctx context.Context, id, userID string) (*model.Reservation, error)
	FindByUser(ctx context.Context, userID, status string) ([]*model.Reservation, error)
	FindActiveOverlapping(ctx context.Context, placeID string, start, end time.Time, excludeID string, limit int) ([]*model.Reservation, error)
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) (*model.Reservation, error)
	UpdateTimes(ctx context.Context, id string, start, end time.Time) (*model.Reservation, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteByPlace(ctx context.Context, placeID string) (int64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

// FindByIDForUser scopes the lookup to the owner, so a foreign id is
// indistinguishable from a missing one.
func (r *mongoReservationRepository) FindByIDForUser(ctx context.Context, id, userID string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "user_id": userID}

	var reservation model.Reservation
	if err := r.collection.FindOne(ctx, filter).Decode(&reservation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindByUser(ctx context.Context, userID, status string) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "start_time", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	reservations := make([]*model.Reservation, 0)
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

// FindActiveOverlapping returns active reservations of placeID whose
// half-open interval intersects [start, end).
func (r *mongoReservationRepository) FindActiveOverlapping(
	ctx context.Context,
	placeID string,
	start, end time.Time,
	excludeID string,
	limit int,
) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"place_id":   placeID,
		"status":     model.ReservationActive,
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping reservations: %w", err)
	}

	return reservations, nil
}

// UpdateStatus moves a reservation from fromStatus to toStatus and returns
// the updated document. ErrNotActive means the reservation exists but is no
// longer in fromStatus.
func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": fromStatus}
	update := bson.M{"$set": bson.M{
		"status":     toStatus,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *mongoReservationRepository) UpdateTimes(ctx context.Context, id string, start, end time.Time) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.ReservationActive}
	update := bson.M{"$set": bson.M{
		"start_time": start,
		"end_time":   end,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *mongoReservationRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.Reservation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reservation model.Reservation
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&reservation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotActive
		}
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservations of user: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoReservationRepository) DeleteByPlace(ctx context.Context, placeID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"place_id": placeID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservations of place: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
