package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
	sqlxrepos "github.com/trezcool/jukwaa/storage/database/sqlx"
	testutil "github.com/trezcool/jukwaa/tests"
)

var t0 = time.Date(2021, 3, 15, 9, 0, 0, 0, time.UTC)

func TestActivityRepository_roundTrip(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewActivityRepository(testutil.OpenDB(t))

	created := testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour),
		stage.Input{Key: "talks", Name: "Talks", StartAt: stage.FormatTime(t0.Add(time.Hour))},
	)

	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Empty(t, got.CoverURL)

	_, err = repo.GetActivityByID(ctx, "nope")
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
}

func TestActivityRepository_UpdateActivity(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewActivityRepository(testutil.OpenDB(t))
	act := testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))

	tl, err := stage.Normalize(nil, stage.Fallbacks{Preparation: t0, Kickoff: t0.Add(time.Hour), Closing: t0.Add(2 * time.Hour)})
	require.NoError(t, err)
	act.Title = "Science fair 2021"
	act.CoverURL = "https://cdn.example.com/fair.png"
	act.Timeline = tl
	act.Version = 2
	act.UpdatedAt = t0.Add(time.Minute)

	updated, err := repo.UpdateActivity(ctx, act, 1)
	require.NoError(t, err)
	assert.Equal(t, act, updated)

	// stale version
	act.Version = 3
	_, err = repo.UpdateActivity(ctx, act, 1)
	assert.Equal(t, activity.ErrVersionConflict, errors.Cause(err))

	act.ID = "nope"
	_, err = repo.UpdateActivity(ctx, act, 2)
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))

	got, err := repo.GetActivityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestActivityRepository_QueryActivities(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewActivityRepository(testutil.OpenDB(t))
	testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))
	testutil.CreateActivity(t, repo, "a2", "Debate club", "u2", t0.Add(-24*time.Hour), t0.Add(time.Hour))
	testutil.CreateActivity(t, repo, "a3", "Art fair", "u1", t0.Add(24*time.Hour), t0.Add(72*time.Hour))

	tests := []struct {
		name     string
		filter   activity.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all, latest start first", want: []string{"a3", "a1", "a2"}},
		{name: "ordering", ordering: []core.DBOrdering{{Field: "title", Ascending: true}}, want: []string{"a3", "a2", "a1"}},
		{name: "unknown ordering field", ordering: []core.DBOrdering{{Field: "secret; DROP TABLE activity"}}, want: []string{"a3", "a1", "a2"}},
		{name: "search", filter: activity.QueryFilter{Search: "FAIR"}, want: []string{"a3", "a1"}},
		{name: "author", filter: activity.QueryFilter{AuthorID: "u2"}, want: []string{"a2"}},
		{name: "start range", filter: activity.QueryFilter{StartFrom: t0.Add(-time.Hour), StartTo: t0.Add(time.Hour)}, want: []string{"a1"}},
		{name: "stage is left to the service", filter: activity.QueryFilter{Stage: stage.KeyClosing}, want: []string{"a3", "a1", "a2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts, err := repo.QueryActivities(ctx, tt.filter, tt.ordering...)
			require.NoError(t, err)
			ids := make([]string, 0, len(acts))
			for _, act := range acts {
				ids = append(ids, act.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestActivityRepository_DeleteActivity(t *testing.T) {
	ctx := context.Background()
	repo := sqlxrepos.NewActivityRepository(testutil.OpenDB(t))
	testutil.CreateActivity(t, repo, "a1", "Science fair", "u1", t0, t0.Add(48*time.Hour))

	require.NoError(t, repo.DeleteActivity(ctx, "a1"))
	_, err := repo.GetActivityByID(ctx, "a1")
	assert.Equal(t, activity.ErrNotFound, errors.Cause(err))
	assert.Equal(t, activity.ErrNotFound, errors.Cause(repo.DeleteActivity(ctx, "a1")))
}
