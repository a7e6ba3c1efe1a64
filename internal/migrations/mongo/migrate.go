package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cuworking/internal/migrations/mongo/validators"
	"cuworking/pkg/auth"
	"cuworking/pkg/logger"
)

const (
	UsersCollection             = "Users"
	PlacesCollection            = "Places"
	ReservationsCollection      = "Reservations"
	ReservationGuardsCollection = "Reservation_guards"

	DefaultPlaceName     = "F206"
	DefaultPlaceLocation = "2 этаж ЦУ"
)

var (
	UsersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	PlacesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "place_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "start_time", Value: -1},
		}},
	}
)

// Seed describes the initial data the migration inserts when missing.
type Seed struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	BcryptCost    int
}

// RunMigration creates collections with their validators and indexes, then
// seeds the admin account and the first place. Every step is idempotent.
func RunMigration(ctx context.Context, db *mongo.Database, seed Seed, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	collections := []struct {
		Name      string
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		{Name: UsersCollection, Indexes: UsersIndexes, Validator: validators.UserValidator},
		{Name: PlacesCollection, Indexes: PlacesIndexes, Validator: validators.PlaceValidator},
		{Name: ReservationsCollection, Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
		{Name: ReservationGuardsCollection, Validator: validators.ReservationGuardValidator},
	}

	for _, def := range collections {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	if err := seedAdmin(ctx, db, seed, log); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if err := seedPlace(ctx, db, log); err != nil {
		return fmt.Errorf("failed to seed place: %w", err)
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

func seedAdmin(ctx context.Context, db *mongo.Database, seed Seed, log *logger.Logger) error {
	if seed.AdminPassword == "" {
		log.Warn("SEED_ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	hash, err := auth.HashPassword(seed.AdminPassword, seed.BcryptCost)
	if err != nil {
		return err
	}

	filter := bson.M{"username": seed.AdminUsername}
	update := bson.M{"$setOnInsert": bson.M{
		"username":      seed.AdminUsername,
		"email":         seed.AdminEmail,
		"password_hash": hash,
		"is_admin":      true,
		"created_at":    time.Now().UTC(),
	}}
	result, err := db.Collection(UsersCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return err
	}

	if result.UpsertedCount > 0 {
		log.Info("Seeded admin user", "username", seed.AdminUsername)
	} else {
		log.Info("Admin user already present", "username", seed.AdminUsername)
	}
	return nil
}

func seedPlace(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	places := db.Collection(PlacesCollection)

	filter := bson.M{"name": DefaultPlaceName}
	update := bson.M{"$setOnInsert": bson.M{
		"name":         DefaultPlaceName,
		"location":     DefaultPlaceLocation,
		"is_available": true,
		"created_at":   time.Now().UTC(),
	}}
	if _, err := places.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return err
	}

	var place struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := places.FindOne(ctx, filter).Decode(&place); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("seeded place %s disappeared", DefaultPlaceName)
		}
		return err
	}

	guard := bson.M{"$setOnInsert": bson.M{
		"version":    0,
		"updated_at": time.Now().UTC(),
	}}
	_, err := db.Collection(ReservationGuardsCollection).
		UpdateByID(ctx, place.ID.Hex(), guard, options.Update().SetUpsert(true))
	if err != nil {
		return err
	}

	log.Info("Ensured default place", "name", DefaultPlaceName, "id", place.ID.Hex())
	return nil
}
