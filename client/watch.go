package client

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
)

// LiveView is an activity resolved at the estimated server time, as seen by a watcher.
type LiveView struct {
	Activity     activity.View // as last fetched; its statuses are the ones at fetch time
	Now          time.Time     // estimated server time
	CurrentStage *stage.Stage
	Statuses     map[string]stage.Status
	RefreshErr   error // last failed refresh, nil once a refresh succeeds
}

type WatchOptions struct {
	Interval time.Duration // between ticks; defaults to 1s
	Refresh  time.Duration // between re-fetches; 0 never re-fetches
}

// Watch fetches the activity `id` then calls `onTick` every interval with its timeline resolved locally at Clock.Now().
// Re-fetches run in the background: a slow or failing refresh never delays a tick.
// It returns once `ctx` is done, after any pending refresh returned.
func (c *Client) Watch(ctx context.Context, id string, opts WatchOptions, onTick func(LiveView)) error {
	view, err := c.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	var (
		mu         sync.Mutex
		refreshing bool
		refreshErr error
		wg         sync.WaitGroup
	)
	defer wg.Wait()

	tick := func() {
		mu.Lock()
		v, rErr := view, refreshErr
		mu.Unlock()

		now := c.Clock.Now()
		res := stage.Resolve(v.Timeline(), now)
		onTick(LiveView{
			Activity:     v,
			Now:          now,
			CurrentStage: res.Current,
			Statuses:     res.Statuses,
			RefreshErr:   rErr,
		})
	}

	refresh := func() {
		defer wg.Done()
		v, err := c.GetActivity(ctx, id)

		mu.Lock()
		defer mu.Unlock()
		refreshing = false
		switch {
		case err == nil:
			view, refreshErr = v, nil
		case ctx.Err() == nil:
			refreshErr = err
			if c.Logger != nil {
				c.Logger.Warn("refreshing activity "+id, err)
			}
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var refreshC <-chan time.Time
	if opts.Refresh > 0 {
		rt := time.NewTicker(opts.Refresh)
		defer rt.Stop()
		refreshC = rt.C
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick()
		case <-refreshC:
			mu.Lock()
			busy := refreshing
			refreshing = true
			mu.Unlock()
			if busy {
				continue
			}
			wg.Add(1)
			go refresh()
		}
	}
}
