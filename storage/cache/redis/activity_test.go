package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jukwaa/core/activity"
	logsvc "github.com/trezcool/jukwaa/services/logger"
	rediscache "github.com/trezcool/jukwaa/storage/cache/redis"
	dummydb "github.com/trezcool/jukwaa/storage/database/dummy"
	testutil "github.com/trezcool/jukwaa/tests"
)

var t0 = time.Date(2021, 3, 15, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (activity.Repository, activity.Repository, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := rediscache.NewClient(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	db, err := dummydb.Open()
	require.NoError(t, err)
	next := dummydb.NewActivityRepository(db)
	return rediscache.NewActivityRepository(next, client, time.Minute, logsvc.NewDiscardLogger()), next, s
}

func TestNewClient_badURL(t *testing.T) {
	_, err := rediscache.NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestActivityRepository_readThrough(t *testing.T) {
	ctx := context.Background()
	repo, next, s := setup(t)
	created := testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))

	assert.True(t, s.Exists("activity:a1"), "cached on create")
	ttl := s.TTL("activity:a1")
	assert.Equal(t, time.Minute, ttl)

	// served from the cache, even once gone from the underlying repository
	require.NoError(t, next.DeleteActivity(ctx, "a1"))
	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	// expired
	s.FastForward(2 * time.Minute)
	_, err = repo.GetActivityByID(ctx, "a1")
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
}

func TestActivityRepository_miss(t *testing.T) {
	ctx := context.Background()
	repo, next, s := setup(t)
	created := testutil.CreateActivity(t, next, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))
	assert.False(t, s.Exists("activity:a1"))

	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.True(t, s.Exists("activity:a1"), "cached on read")
}

func TestActivityRepository_corruptEntry(t *testing.T) {
	ctx := context.Background()
	repo, next, s := setup(t)
	created := testutil.CreateActivity(t, next, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))
	require.NoError(t, s.Set("activity:a1", "{not json"))

	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	cached, err := s.Get("activity:a1")
	require.NoError(t, err)
	assert.NotEqual(t, "{not json", cached, "replaced on read")
}

// interleavedRepository runs `during` once, between reading an activity and returning it.
type interleavedRepository struct {
	activity.Repository
	during func()
}

func (repo *interleavedRepository) GetActivityByID(ctx context.Context, id string) (activity.Activity, error) {
	act, err := repo.Repository.GetActivityByID(ctx, id)
	if during := repo.during; during != nil {
		repo.during = nil
		during()
	}
	return act, err
}

func TestActivityRepository_missDoesNotOverwriteNewerCopy(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	client, err := rediscache.NewClient(ctx, "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	db, err := dummydb.Open()
	require.NoError(t, err)
	next := &interleavedRepository{Repository: dummydb.NewActivityRepository(db)}
	repo := rediscache.NewActivityRepository(next, client, time.Minute, logsvc.NewDiscardLogger())

	act := testutil.CreateActivity(t, next, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))
	next.during = func() {
		updated := act
		updated.Title = "Science fair 2021"
		updated.Version = 2
		_, err := repo.UpdateActivity(ctx, updated, 1)
		require.NoError(t, err)
	}

	stale, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Version)

	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "Science fair 2021", got.Title)
}

func TestActivityRepository_UpdateActivity(t *testing.T) {
	ctx := context.Background()
	repo, _, s := setup(t)
	act := testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))

	act.Title = "Science fair 2021"
	act.Version = 2
	_, err := repo.UpdateActivity(ctx, act, 1)
	require.NoError(t, err)
	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Science fair 2021", got.Title)

	// a conflicting update evicts the cached copy
	act.Version = 3
	_, err = repo.UpdateActivity(ctx, act, 1)
	assert.Equal(t, activity.ErrVersionConflict, errors.Cause(err))
	assert.False(t, s.Exists("activity:a1"))
}

func TestActivityRepository_DeleteActivity(t *testing.T) {
	ctx := context.Background()
	repo, _, s := setup(t)
	testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))

	require.NoError(t, repo.DeleteActivity(ctx, "a1"))
	assert.False(t, s.Exists("activity:a1"))
	_, err := repo.GetActivityByID(ctx, "a1")
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
}

func TestActivityRepository_redisDown(t *testing.T) {
	ctx := context.Background()
	repo, _, s := setup(t)
	created := testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))

	s.Close()
	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err, "falls back on the underlying repository")
	assert.Equal(t, created, got)
}
