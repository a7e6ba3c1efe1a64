package mongo

import (
	"testing"

	"cuworking/internal/migrations/mongo/validators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUsersIndexesAreUnique(t *testing.T) {
	require.Len(t, UsersIndexes, 2)
	for _, idx := range UsersIndexes {
		require.NotNil(t, idx.Options)
		require.NotNil(t, idx.Options.Unique)
		assert.True(t, *idx.Options.Unique)
	}
}

func TestReservationsOverlapIndexLeadsWithPlace(t *testing.T) {
	keys := ReservationsIndexes[0].Keys.(bson.D)
	var names []string
	for _, k := range keys {
		names = append(names, k.Key)
	}
	assert.Equal(t, []string{"place_id", "status", "start_time", "end_time"}, names)
}

func TestReservationValidatorRequiresLedgerFields(t *testing.T) {
	schema := validators.ReservationValidator["$jsonSchema"].(bson.M)
	required := schema["required"].([]string)
	for _, field := range []string{"place_id", "user_id", "start_time", "end_time", "status"} {
		assert.Contains(t, required, field)
	}

	status := schema["properties"].(bson.M)["status"].(bson.M)
	assert.ElementsMatch(t, []string{"active", "cancelled"}, status["enum"])
}
