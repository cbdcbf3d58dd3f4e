package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorumforum/quorum-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedTopic creates an open, visible topic and returns its state.
func SeedTopic(t *testing.T, pool *pgxpool.Pool) domain.TopicState {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	topic := domain.TopicState{
		ID:        uuid.New(),
		Title:     "Test topic " + uniqueSuffix(),
		Visible:   true,
		BumpedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO topics (id, title, closed, visible, bumped_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		topic.ID, topic.Title, topic.Closed, topic.Visible, topic.BumpedAt, topic.CreatedAt, topic.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedTopic insert: %v", err)
	}

	// every topic starts with its first post
	SeedPost(t, pool, topic.ID, 1)

	return topic
}

// SeedPost adds a post to a topic with the given post number.
func SeedPost(t *testing.T, pool *pgxpool.Pool, topicID uuid.UUID, postNumber int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO posts (id, topic_id, post_number, created_at)
		 VALUES ($1, $2, $3, now())`,
		id, topicID, postNumber,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPost insert: %v", err)
	}
	return id
}

// SeedUser creates a user. suspendedTill/silencedTill may be nil.
func SeedUser(t *testing.T, pool *pgxpool.Pool, suspendedTill, silencedTill *time.Time) domain.UserState {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := domain.UserState{
		ID:            uuid.New(),
		Username:      "testuser-" + uniqueSuffix(),
		SuspendedTill: suspendedTill,
		SilencedTill:  silencedTill,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, username, suspended_till, silenced_till, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Username, user.SuspendedTill, user.SilencedTill, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedUser insert: %v", err)
	}

	return user
}
