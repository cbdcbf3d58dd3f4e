package topicstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/testhelper"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/topicstate"
	"github.com/quorumforum/quorum-backend/internal/domain"
)

func TestRepo_Load(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	seeded := testhelper.SeedTopic(t, pool)

	got, err := repo.Load(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, seeded.Title, got.Title)
	assert.False(t, got.Closed)
	assert.True(t, got.Visible)
	assert.False(t, got.IsDeleted())
}

func TestRepo_Load_NotFound(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)

	_, err := repo.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_SetClosed(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)

	require.NoError(t, repo.SetClosed(ctx, topic.ID, true))
	got, err := repo.Load(ctx, topic.ID)
	require.NoError(t, err)
	assert.True(t, got.Closed)

	// closing an already closed topic is a no-op, not an error
	require.NoError(t, repo.SetClosed(ctx, topic.ID, true))

	require.NoError(t, repo.SetClosed(ctx, topic.ID, false))
	got, err = repo.Load(ctx, topic.ID)
	require.NoError(t, err)
	assert.False(t, got.Closed)
}

func TestRepo_SetClosed_DeletedTopic(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	require.NoError(t, repo.SoftDelete(ctx, topic.ID, time.Now().UTC()))

	err := repo.SetClosed(ctx, topic.ID, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_Publish(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	categoryID := uuid.New()

	require.NoError(t, repo.Publish(ctx, topic.ID, categoryID))

	got, err := repo.Load(ctx, topic.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, categoryID, *got.CategoryID)
	assert.True(t, got.Visible)
}

func TestRepo_SoftDelete(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	at := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.SoftDelete(ctx, topic.ID, at))

	got, err := repo.Load(ctx, topic.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.IsDeleted())
	assert.WithinDuration(t, at, *got.DeletedAt, time.Millisecond)

	// second delete affects no rows
	err = repo.SoftDelete(ctx, topic.ID, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_Bump(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	at := topic.BumpedAt.Add(2 * time.Hour)

	require.NoError(t, repo.Bump(ctx, topic.ID, at))

	got, err := repo.Load(ctx, topic.ID)
	require.NoError(t, err)
	assert.True(t, got.BumpedAt.After(topic.BumpedAt))
}

func TestRepo_DeleteReplies(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	testhelper.SeedPost(t, pool, topic.ID, 2)
	testhelper.SeedPost(t, pool, topic.ID, 3)

	n, err := repo.DeleteReplies(ctx, topic.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// the first post survives
	_, err = repo.LastPostAt(ctx, topic.ID)
	require.NoError(t, err)

	// already gone, nothing left to remove
	n, err = repo.DeleteReplies(ctx, topic.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepo_LastPostAt(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	testhelper.SeedPost(t, pool, topic.ID, 2)

	at, err := repo.LastPostAt(ctx, topic.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), at, time.Minute)
}

func TestRepo_LastPostAt_NoPosts(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := topicstate.New(pool)

	_, err := repo.LastPostAt(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
