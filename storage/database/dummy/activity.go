package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db.activity}
}

// clone copies `act` so that callers never share the stored stage slice.
func clone(act activity.Activity) activity.Activity {
	act.Timeline.Stages = append([]stage.Stage(nil), act.Timeline.Stages...)
	return act
}

func (repo *activityRepository) CreateActivity(_ context.Context, act activity.Activity) (activity.Activity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := clone(act)
	repo.db.table[act.ID] = &stored
	return act, nil
}

func (repo *activityRepository) GetActivityByID(_ context.Context, id string) (activity.Activity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if act, ok := repo.db.table[id]; ok {
		return clone(*act), nil
	}
	return activity.Activity{}, activity.ErrNotFound
}

func (repo *activityRepository) QueryActivities(
	_ context.Context,
	filter activity.QueryFilter,
	ordering ...core.DBOrdering,
) ([]activity.Activity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	acts := make([]activity.Activity, 0, len(repo.db.table))
	for _, act := range repo.db.table {
		if search != "" &&
			!strings.Contains(strings.ToLower(act.Title), search) &&
			!strings.Contains(strings.ToLower(act.Description), search) {
			continue
		}
		if filter.AuthorID != "" && act.AuthorID != filter.AuthorID {
			continue
		}
		if !filter.StartFrom.IsZero() && act.Timeline.StartDate.Before(filter.StartFrom) {
			continue
		}
		if !filter.StartTo.IsZero() && act.Timeline.StartDate.After(filter.StartTo) {
			continue
		}
		acts = append(acts, clone(*act))
	}

	sortActivities(acts, ordering)
	return acts, nil
}

func (repo *activityRepository) UpdateActivity(
	_ context.Context,
	act activity.Activity,
	prevVersion int,
) (activity.Activity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[act.ID]
	if !ok {
		return activity.Activity{}, activity.ErrNotFound
	}
	if stored.Version != prevVersion {
		return activity.Activity{}, activity.ErrVersionConflict
	}
	updated := clone(act)
	updated.AuthorID = stored.AuthorID
	updated.CreatedAt = stored.CreatedAt
	repo.db.table[act.ID] = &updated
	return clone(updated), nil
}

func (repo *activityRepository) DeleteActivity(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return activity.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

// sortActivities sorts `acts` by `ordering`, falling back on activity.DefaultOrdering. Unknown fields are ignored.
func sortActivities(acts []activity.Activity, ordering []core.DBOrdering) {
	ordering = append(ordering, activity.DefaultOrdering, core.DBOrdering{Field: "id", Ascending: true})
	sort.SliceStable(acts, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compare(acts[i], acts[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func compare(a, b activity.Activity, field string) int {
	switch field {
	case "id":
		return strings.Compare(a.ID, b.ID)
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "start_date":
		return compareTime(a.Timeline.StartDate.UnixNano(), b.Timeline.StartDate.UnixNano())
	case "end_date":
		return compareTime(a.Timeline.EndDate.UnixNano(), b.Timeline.EndDate.UnixNano())
	case "created_at":
		return compareTime(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "updated_at":
		return compareTime(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
	}
	return 0
}

func compareTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
