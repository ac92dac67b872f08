package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/utils"
)

// Runs against a real server: MONGO_TEST_URI=mongodb://localhost:27017 go test ./internal/repositories/mongo
func TestSessionRepo(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, err := config.NewMongo(ctx, uri)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	db := client.Database("scribe_test_" + uuid.NewString()[:8])
	defer db.Drop(ctx)
	require.NoError(t, config.EnsureMongoIndexes(ctx, db))

	repo := NewSessionRepo(db)
	s := &models.Session{
		ID:        uuid.NewString(),
		UserID:    5,
		Username:  "dave",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(5), got.UserID)
	assert.Equal(t, "dave", got.Username)

	// session ids are unique
	assert.Error(t, repo.Create(ctx, &models.Session{ID: s.ID, UserID: 6, ExpiresAt: s.ExpiresAt}))

	require.NoError(t, repo.Delete(ctx, s.ID))
	_, err = repo.Get(ctx, s.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	expired := &models.Session{ID: uuid.NewString(), UserID: 5, ExpiresAt: time.Now().Add(-time.Minute).UTC()}
	require.NoError(t, repo.Create(ctx, expired))
	_, err = repo.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
