// Package rediscache caches canonical activity documents in redis, in front of another activity.Repository.
// Only stored data is cached: timelines are resolved on every read by the service.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
)

const keyPrefix = "activity:"

// NewClient connects to the redis server at `redisURL`, eg. "redis://localhost:6379/0".
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return client, nil
}

type activityRepository struct {
	next   activity.Repository
	client *redis.Client
	ttl    time.Duration
	log    core.Logger
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

// NewActivityRepository wraps `next` with a read-through cache. Cache failures are logged, never returned.
func NewActivityRepository(next activity.Repository, client *redis.Client, ttl time.Duration, logger core.Logger) activity.Repository {
	return &activityRepository{next: next, client: client, ttl: ttl, log: logger}
}

func key(id string) string {
	return keyPrefix + id
}

func (repo *activityRepository) set(ctx context.Context, act activity.Activity) {
	data, err := json.Marshal(act)
	if err == nil {
		err = repo.client.Set(ctx, key(act.ID), data, repo.ttl).Err()
	}
	if err != nil {
		repo.log.Warn("caching activity "+act.ID, err)
	}
}

// fill caches `act` read from the next repository, unless a write cached a copy in the meantime.
func (repo *activityRepository) fill(ctx context.Context, act activity.Activity) {
	data, err := json.Marshal(act)
	if err == nil {
		err = repo.client.SetNX(ctx, key(act.ID), data, repo.ttl).Err()
	}
	if err != nil {
		repo.log.Warn("caching activity "+act.ID, err)
	}
}

func (repo *activityRepository) evict(ctx context.Context, id string) {
	if err := repo.client.Del(ctx, key(id)).Err(); err != nil {
		repo.log.Warn("evicting activity "+id, err)
	}
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	act, err := repo.next.CreateActivity(ctx, act)
	if err != nil {
		return activity.Activity{}, err
	}
	repo.set(ctx, act)
	return act, nil
}

func (repo *activityRepository) GetActivityByID(ctx context.Context, id string) (activity.Activity, error) {
	data, err := repo.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var act activity.Activity
		if err = json.Unmarshal(data, &act); err == nil {
			return act, nil
		}
		repo.log.Warn("decoding cached activity "+id, err)
		repo.evict(ctx, id)
	case err != redis.Nil:
		repo.log.Warn("getting cached activity "+id, err)
	}

	act, err := repo.next.GetActivityByID(ctx, id)
	if err != nil {
		return activity.Activity{}, err
	}
	repo.fill(ctx, act)
	return act, nil
}

func (repo *activityRepository) QueryActivities(
	ctx context.Context,
	filter activity.QueryFilter,
	ordering ...core.DBOrdering,
) ([]activity.Activity, error) {
	return repo.next.QueryActivities(ctx, filter, ordering...)
}

func (repo *activityRepository) UpdateActivity(
	ctx context.Context,
	act activity.Activity,
	prevVersion int,
) (activity.Activity, error) {
	updated, err := repo.next.UpdateActivity(ctx, act, prevVersion)
	if err != nil {
		// the cached copy may be the stale one
		repo.evict(ctx, act.ID)
		return activity.Activity{}, err
	}
	repo.set(ctx, updated)
	return updated, nil
}

func (repo *activityRepository) DeleteActivity(ctx context.Context, id string) error {
	err := repo.next.DeleteActivity(ctx, id)
	repo.evict(ctx, id)
	return err
}
