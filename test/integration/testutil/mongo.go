//go:build integration

package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	mongoMigration "cuworking/internal/migrations/mongo"
	"cuworking/pkg/client"
	"cuworking/pkg/config"
	"cuworking/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// Transactions need a replica set, even a single-node one.
	DefaultMongoURI   = "mongodb://localhost:27017/?replicaSet=rs0"
	ConnectionTimeout = 10 * time.Second
)

// MongoHelper owns a throwaway database for one test.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	Config   *config.Config
}

// NewMongoHelper connects, migrates a fresh uniquely named database and
// returns a config wired to it. The database is dropped on cleanup.
func NewMongoHelper(t *testing.T) *MongoHelper {
	t.Helper()

	mongoURI := getEnv("TEST_MONGO_URI", DefaultMongoURI)
	dbName := "cuworking_test_" + uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable at %s: %v", mongoURI, err)
	}

	log := logger.Discard()
	db := mc.Database(dbName)
	if err := mongoMigration.RunMigration(ctx, db, mongoMigration.Seed{}, log); err != nil {
		t.Fatalf("failed to migrate %s: %v", dbName, err)
	}

	cfg := &config.Config{
		MongoURI:          mongoURI,
		MongoDatabaseName: dbName,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		BcryptCost:        4,
		Log:               log,
		Client:            &client.Client{Mongo: mc},
	}

	h := &MongoHelper{Client: mc, Database: db, Config: cfg}
	t.Cleanup(func() { h.close(t) })
	return h
}

func (m *MongoHelper) CountDocuments(t *testing.T, collection string, filter any) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collection, err)
	}
	return count
}

func (m *MongoHelper) FindOne(t *testing.T, collection string, filter, out any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Database.Collection(collection).FindOne(ctx, filter).Decode(out); err != nil {
		t.Fatalf("failed to find document in %s: %v", collection, err)
	}
}

func (m *MongoHelper) close(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Database.Drop(ctx); err != nil {
		t.Logf("warning: failed to drop %s: %v", m.Database.Name(), err)
	}
	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
