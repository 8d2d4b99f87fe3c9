package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jukwaa/client"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/clocksync"
	"github.com/trezcool/jukwaa/core/stage"
)

// watchedView is a debate prepared from serverT0-2h: kickoff at -1h, "Talks" at +1h, closing at +3h.
func watchedView(t *testing.T, title string) activity.View {
	t.Helper()
	tl, err := stage.Normalize([]stage.Input{
		{Key: stage.KeyPreparation},
		{Key: stage.KeyKickoff},
		{Key: "talks", Name: "Talks", StartAt: stage.FormatTime(serverT0.Add(time.Hour))},
		{Key: stage.KeyClosing},
	}, stage.Fallbacks{
		Preparation: serverT0.Add(-2 * time.Hour),
		Kickoff:     serverT0.Add(-time.Hour),
		Closing:     serverT0.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	return activity.NewView(activity.Activity{ID: "a1", Title: title, Timeline: tl, Version: 1}, serverT0)
}

// watchServer serves `GET /v1/activities/a1`; `handle` may block or fail the n-th request (from 1).
func watchServer(t *testing.T, handle func(n int32, w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		w.Header().Set(clocksync.HeaderServerTime, stage.FormatTime(serverT0))
		if handle != nil && handle(n, w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(watchedView(t, "Debate"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Watch_localTicks(t *testing.T) {
	srv := watchServer(t, nil)
	c, local := newClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var views []client.LiveView
	err := c.Watch(ctx, "a1", client.WatchOptions{Interval: time.Millisecond}, func(lv client.LiveView) {
		if len(views) == 3 {
			return // cancelled
		}
		views = append(views, lv)
		if len(views) == 3 {
			cancel()
			return
		}
		local.Advance(90 * time.Minute)
	})
	assert.Equal(t, context.Canceled, err)
	require.Len(t, views, 3)

	wantCurrent := []string{stage.KeyKickoff, "talks", stage.KeyClosing}
	for i, lv := range views {
		require.NotNil(t, lv.CurrentStage)
		assert.Equal(t, wantCurrent[i], lv.CurrentStage.Key, "tick #%d", i+1)
		assert.True(t, lv.Now.Equal(serverT0.Add(time.Duration(i)*90*time.Minute)), "tick #%d", i+1)
		assert.Equal(t, "Debate", lv.Activity.Title)
		assert.NoError(t, lv.RefreshErr)
	}
	assert.Equal(t, stage.StatusCompleted, views[2].Statuses["talks"])
	assert.Equal(t, stage.StatusActive, views[2].Statuses[stage.KeyClosing])
}

func TestClient_Watch_defaultClock(t *testing.T) {
	srv := watchServer(t, nil)
	c := &client.Client{BaseURL: srv.URL}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var first *client.LiveView
	err := c.Watch(ctx, "a1", client.WatchOptions{Interval: time.Millisecond}, func(lv client.LiveView) {
		if first == nil {
			first = &lv
			cancel()
		}
	})
	assert.Equal(t, context.Canceled, err)
	require.NotNil(t, c.Clock)
	require.NotNil(t, first)
	require.NotNil(t, first.CurrentStage)
	assert.Equal(t, stage.KeyKickoff, first.CurrentStage.Key)
}

func TestClient_Watch_notFound(t *testing.T) {
	srv := watchServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) bool {
		http.Error(w, `{"error": "activity not found"}`, http.StatusNotFound)
		return true
	})
	c, _ := newClient(t, srv.URL)

	called := false
	err := c.Watch(context.Background(), "a1", client.WatchOptions{}, func(client.LiveView) { called = true })
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
	assert.False(t, called)
}

func TestClient_Watch_refresh(t *testing.T) {
	errSeen := make(chan struct{})
	var once sync.Once

	srv := watchServer(t, func(n int32, w http.ResponseWriter, r *http.Request) bool {
		switch n {
		case 1:
			return false
		case 2:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		default:
			select {
			case <-errSeen:
			case <-r.Context().Done():
				return true
			}
			_ = json.NewEncoder(w).Encode(watchedView(t, "Debate (final)"))
		}
		return true
	})
	c, _ := newClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sawRefresh bool
	err := c.Watch(ctx, "a1", client.WatchOptions{Interval: time.Millisecond, Refresh: 5 * time.Millisecond}, func(lv client.LiveView) {
		if lv.RefreshErr != nil {
			assert.True(t, client.IsStatus(lv.RefreshErr, http.StatusServiceUnavailable))
			assert.Equal(t, "Debate", lv.Activity.Title) // last good fetch is kept
			once.Do(func() { close(errSeen) })
		}
		if lv.Activity.Title == "Debate (final)" {
			sawRefresh = true
			assert.NoError(t, lv.RefreshErr)
			cancel()
		}
	})
	assert.Equal(t, context.Canceled, err)
	assert.True(t, sawRefresh, "refreshed activity not seen")
}

func TestClient_Watch_slowRefresh(t *testing.T) {
	release := make(chan struct{})
	srv := watchServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) bool {
		if n > 1 {
			<-release
		}
		return false
	})
	defer close(release) // before srv.Close, which waits for handlers

	c, _ := newClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ticks := 0
	err := c.Watch(ctx, "a1", client.WatchOptions{Interval: time.Millisecond, Refresh: time.Millisecond}, func(client.LiveView) {
		ticks++
		if ticks >= 20 {
			cancel()
		}
	})
	assert.Equal(t, context.Canceled, err)
	assert.GreaterOrEqual(t, ticks, 20)
}
