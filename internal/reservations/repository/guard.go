package repository

import (
	"context"
	"fmt"
	"time"

	"cuworking/pkg/config"
	mongotx "cuworking/pkg/db/mongo"
	"cuworking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const GuardCollectionName = "Reservation_guards"

// GuardRepository maintains one document per place. Writing it first inside
// a transaction makes every other transaction that writes the same place
// fail with a write conflict and retry, which serialises ledger writes per
// place while leaving different places independent.
type GuardRepository interface {
	Touch(ctx context.Context, placeID string) error
	Delete(ctx context.Context, placeID string) error
}

type mongoGuardRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewGuardRepository(cfg *config.Config) GuardRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoGuardRepository{
		cfg:        cfg,
		collection: db.Collection(GuardCollectionName),
	}
}

func (r *mongoGuardRepository) Touch(ctx context.Context, placeID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var guard model.ReservationGuard
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": placeID}, update, opts).Decode(&guard); err != nil {
		return fmt.Errorf("failed to touch reservation guard: %w", err)
	}
	r.cfg.Log.Debug("Reservation guard touched", "place_id", guard.PlaceID, "version", guard.Version)
	return nil
}

func (r *mongoGuardRepository) Delete(ctx context.Context, placeID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": placeID}); err != nil {
		return fmt.Errorf("failed to delete reservation guard: %w", err)
	}
	return nil
}
