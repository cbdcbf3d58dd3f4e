package timer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/testhelper"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/timer"
	"github.com/quorumforum/quorum-backend/internal/domain"
)

func minutes(n int) *int { return &n }

func futureTime(d time.Duration) *time.Time {
	t := time.Now().UTC().Add(d).Truncate(time.Microsecond)
	return &t
}

func newCloseTimer(entityID uuid.UUID) domain.TimerRecord {
	return domain.TimerRecord{
		EntityKind: domain.EntityKindTopic,
		EntityID:   entityID,
		StatusType: domain.StatusTypeClose,
		Slot:       domain.SlotClose,
		ExecuteAt:  futureTime(time.Hour),
		CreatedBy:  uuid.New(),
	}
}

func TestRepo_Upsert_InsertThenSupersede(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)

	first, err := repo.Upsert(ctx, newCloseTimer(topic.ID))
	require.NoError(t, err)
	require.True(t, first.IsActive())
	assert.Equal(t, domain.TimerStateScheduled, first.State)
	assert.Equal(t, domain.StatusTypeClose, first.StatusType)

	// Rescheduling the same slot must update in place, never duplicate.
	second := newCloseTimer(topic.ID)
	second.StatusType = domain.StatusTypeCloseAfterLastPost
	second.BasedOnLastPost = true
	second.DurationMinutes = minutes(120)
	second.ExecuteAt = futureTime(2 * time.Hour)

	updated, err := repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID, "same slot must reuse the row")
	assert.Equal(t, domain.StatusTypeCloseAfterLastPost, updated.StatusType)
	assert.True(t, updated.BasedOnLastPost)

	all, err := repo.ListByEntity(ctx, domain.EntityKindTopic, topic.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepo_Clear_TombstonesWithoutDeleting(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	created, err := repo.Upsert(ctx, newCloseTimer(topic.ID))
	require.NoError(t, err)

	cleared, err := repo.Clear(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.Equal(t, created.ID, cleared.ID)
	assert.Nil(t, cleared.ExecuteAt)
	assert.Nil(t, cleared.DurationMinutes)

	// The row survives for audit.
	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
}

func TestRepo_Clear_MissingSlot(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)

	_, err := repo.Clear(context.Background(), domain.EntityKindTopic, uuid.New(), domain.SlotClose)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_ClaimDue_SkipsInertAndFuture(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topicDue := testhelper.SeedTopic(t, pool)
	topicFuture := testhelper.SeedTopic(t, pool)
	topicInert := testhelper.SeedTopic(t, pool)

	due := newCloseTimer(topicDue.ID)
	due.ExecuteAt = futureTime(-time.Minute)
	dueRec, err := repo.Upsert(ctx, due)
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, newCloseTimer(topicFuture.ID))
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, newCloseTimer(topicInert.ID))
	require.NoError(t, err)
	_, err = repo.Clear(ctx, domain.EntityKindTopic, topicInert.ID, domain.SlotClose)
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool, len(claimed))
	for _, rec := range claimed {
		ids[rec.ID] = true
		assert.Equal(t, domain.TimerStateExecuting, rec.State)
		assert.NotNil(t, rec.ClaimedAt)
	}
	// other parallel tests may add their own due timers; only check ours
	assert.True(t, ids[dueRec.ID], "due timer must be claimed")

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topicFuture.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateScheduled, got.State, "future timer must not be claimed")
}

func TestRepo_ClaimDue_SingleWinnerUnderConcurrency(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	due := newCloseTimer(topic.ID)
	due.ExecuteAt = futureTime(-time.Minute)
	rec, err := repo.Upsert(ctx, due)
	require.NoError(t, err)

	const workers = 8
	now := time.Now().UTC()
	cutoff := now.Add(-5 * time.Minute)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimDue(ctx, now, cutoff, 100)
			if err != nil {
				t.Errorf("ClaimDue: %v", err)
				return
			}
			for _, c := range claimed {
				if c.ID == rec.ID {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one worker must win the claim")
}

func TestRepo_ClaimDue_RetakesAbandonedClaim(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	due := newCloseTimer(topic.ID)
	due.ExecuteAt = futureTime(-time.Hour)
	rec, err := repo.Upsert(ctx, due)
	require.NoError(t, err)

	now := time.Now().UTC()

	// First worker claims, then "crashes" (never completes).
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.True(t, containsID(claimed, rec.ID))

	// With the claim still fresh, nobody can retake it.
	second, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	assert.False(t, containsID(second, rec.ID), "fresh claim must not be retaken")

	// Once the cutoff passes the claim time, the timer is handed out again.
	later := now.Add(10 * time.Minute)
	third, err := repo.ClaimDue(ctx, later, later.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	assert.True(t, containsID(third, rec.ID), "expired claim must be retaken")
}

func containsID(records []*domain.TimerRecord, id uuid.UUID) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}

func TestRepo_MarkCompleted_RetiresOneShot(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	due := newCloseTimer(topic.ID)
	due.ExecuteAt = futureTime(-time.Minute)
	rec, err := repo.Upsert(ctx, due)
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.True(t, containsID(claimed, rec.ID))

	executedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.MarkCompleted(ctx, rec.ID, executedAt))

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateCompleted, got.State)
	assert.Nil(t, got.ExecuteAt)
	assert.Nil(t, got.ClaimedAt)
	require.NotNil(t, got.LastExecutedAt)
	assert.WithinDuration(t, executedAt, *got.LastExecutedAt, time.Second)

	// Completing again without a claim is a lost claim.
	err = repo.MarkCompleted(ctx, rec.ID, executedAt)
	assert.ErrorIs(t, err, domain.ErrClaimLost)
}

func TestRepo_RescheduleRepeat_AdvancesExecuteAt(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	bump := domain.TimerRecord{
		EntityKind:      domain.EntityKindTopic,
		EntityID:        topic.ID,
		StatusType:      domain.StatusTypeBump,
		Slot:            domain.SlotBump,
		ExecuteAt:       futureTime(-time.Minute),
		DurationMinutes: minutes(60),
		CreatedBy:       uuid.New(),
	}
	rec, err := repo.Upsert(ctx, bump)
	require.NoError(t, err)
	prevAt := *rec.ExecuteAt

	now := time.Now().UTC()
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.True(t, containsID(claimed, rec.ID))

	nextAt := now.Add(time.Hour).Truncate(time.Microsecond)
	require.NoError(t, repo.RescheduleRepeat(ctx, rec.ID, nextAt, now))

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotBump)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateScheduled, got.State)
	require.NotNil(t, got.ExecuteAt)
	assert.True(t, got.ExecuteAt.After(prevAt), "repeating timer must move strictly forward")
	assert.NotNil(t, got.LastExecutedAt)
}

func TestRepo_RescheduleRepeat_CancelledMidFlightStaysRetired(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	bump := domain.TimerRecord{
		EntityKind:      domain.EntityKindTopic,
		EntityID:        topic.ID,
		StatusType:      domain.StatusTypeBump,
		Slot:            domain.SlotBump,
		ExecuteAt:       futureTime(-time.Minute),
		DurationMinutes: minutes(60),
		CreatedBy:       uuid.New(),
	}
	rec, err := repo.Upsert(ctx, bump)
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.True(t, containsID(claimed, rec.ID))

	// Moderator cancels while the firing is in flight.
	_, err = repo.Clear(ctx, domain.EntityKindTopic, topic.ID, domain.SlotBump)
	require.NoError(t, err)

	// The worker's re-arm after its firing must not resurrect the
	// cancelled timer.
	err = repo.RescheduleRepeat(ctx, rec.ID, now.Add(time.Hour), now)
	assert.ErrorIs(t, err, domain.ErrClaimLost)

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotBump)
	require.NoError(t, err)
	assert.Nil(t, got.ExecuteAt, "cancelled timer must stay retired")
}

func TestRepo_MarkRetry_BumpsCounterAndRearms(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	due := newCloseTimer(topic.ID)
	due.ExecuteAt = futureTime(-time.Minute)
	rec, err := repo.Upsert(ctx, due)
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.True(t, containsID(claimed, rec.ID))

	nextAt := now.Add(2 * time.Minute).Truncate(time.Microsecond)
	require.NoError(t, repo.MarkRetry(ctx, rec.ID, nextAt, "gateway timeout"))

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateScheduled, got.State)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "gateway timeout", *got.LastError)
	require.NotNil(t, got.ExecuteAt)
	assert.WithinDuration(t, nextAt, *got.ExecuteAt, time.Second)
}

func TestRepo_MarkTerminal_RecordsReason(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)
	due := newCloseTimer(topic.ID)
	due.ExecuteAt = futureTime(-time.Minute)
	rec, err := repo.Upsert(ctx, due)
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := repo.ClaimDue(ctx, now, now.Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.True(t, containsID(claimed, rec.ID))

	require.NoError(t, repo.MarkTerminal(ctx, rec.ID, "entity gone"))

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateFailedTerminal, got.State)
	assert.Nil(t, got.ExecuteAt)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "entity gone", *got.LastError)
}

func TestRepo_RecomputeFromLastPost(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	topic := testhelper.SeedTopic(t, pool)

	rec := newCloseTimer(topic.ID)
	rec.StatusType = domain.StatusTypeCloseAfterLastPost
	rec.BasedOnLastPost = true
	rec.DurationMinutes = minutes(120)
	created, err := repo.Upsert(ctx, rec)
	require.NoError(t, err)
	require.True(t, created.BasedOnLastPost)

	lastPost := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Microsecond)
	want := lastPost.Add(120 * time.Minute)

	shifted, err := repo.RecomputeFromLastPost(ctx, domain.EntityKindTopic, topic.ID, lastPost)
	require.NoError(t, err)
	assert.Equal(t, int64(1), shifted)

	got, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	require.NotNil(t, got.ExecuteAt)
	assert.WithinDuration(t, want, *got.ExecuteAt, time.Second)

	// Idempotent under repeated calls with the same timestamp.
	shifted, err = repo.RecomputeFromLastPost(ctx, domain.EntityKindTopic, topic.ID, lastPost)
	require.NoError(t, err)
	assert.Equal(t, int64(1), shifted)

	again, err := repo.GetBySlot(ctx, domain.EntityKindTopic, topic.ID, domain.SlotClose)
	require.NoError(t, err)
	assert.WithinDuration(t, want, *again.ExecuteAt, time.Second)

	// Fixed-time timers are untouched.
	fixed := testhelper.SeedTopic(t, pool)
	_, err = repo.Upsert(ctx, newCloseTimer(fixed.ID))
	require.NoError(t, err)

	shifted, err = repo.RecomputeFromLastPost(ctx, domain.EntityKindTopic, fixed.ID, lastPost)
	require.NoError(t, err)
	assert.Equal(t, int64(0), shifted)
}

func TestRepo_PurgeForDeletedTopics(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := timer.New(pool)
	ctx := context.Background()

	live := testhelper.SeedTopic(t, pool)
	oldDeleted := testhelper.SeedTopic(t, pool)
	freshDeleted := testhelper.SeedTopic(t, pool)

	for _, topic := range []uuid.UUID{live.ID, oldDeleted.ID, freshDeleted.ID} {
		_, err := repo.Upsert(ctx, newCloseTimer(topic))
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	_, err := pool.Exec(ctx, `UPDATE topics SET deleted_at = $2 WHERE id = $1`, oldDeleted.ID, now.AddDate(0, 0, -120))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE topics SET deleted_at = $2 WHERE id = $1`, freshDeleted.ID, now.AddDate(0, 0, -10))
	require.NoError(t, err)

	purged, err := repo.PurgeForDeletedTopics(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = repo.GetBySlot(ctx, domain.EntityKindTopic, oldDeleted.ID, domain.SlotClose)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, kept := range []uuid.UUID{live.ID, freshDeleted.ID} {
		_, err = repo.GetBySlot(ctx, domain.EntityKindTopic, kept, domain.SlotClose)
		assert.NoError(t, err)
	}
}
