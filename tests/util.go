package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
	"github.com/trezcool/jukwaa/storage/database"
)

// NewConfig returns the test configuration, with a fresh in-memory sqlite database.
func NewConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		AppName:   "Jukwaa",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			Host:               "localhost",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
		Database: core.DatabaseConfig{
			Engine: database.SQLite,
			Name:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		},
		Activity: core.ActivityConfig{StrictStageOrder: true, MaxStages: 50},
	}
}

// OpenDB opens and migrates a fresh in-memory database, closed at the end of the test.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(NewConfig())
	if err != nil {
		t.Fatalf("openDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db); err != nil {
		t.Fatalf("openDB() failed: %v", err)
	}
	return db
}

// CreateActivity saves an activity whose timeline is normalized from `stages` and the given boundaries.
// Preparation starts an hour before `start` unless given.
func CreateActivity(
	t *testing.T,
	repo activity.Repository,
	id, title, authorID string,
	start, end time.Time,
	stages ...stage.Input,
) activity.Activity {
	t.Helper()
	tl, err := stage.Normalize(stages, stage.Fallbacks{Preparation: start.Add(-time.Hour), Kickoff: start, Closing: end})
	if err != nil {
		t.Fatalf("createActivity() failed: %v", err)
	}
	act := activity.Activity{
		ID:        id,
		Title:     title,
		AuthorID:  authorID,
		Timeline:  tl,
		Version:   1,
		CreatedAt: start,
		UpdatedAt: start,
	}
	act, err = repo.CreateActivity(context.Background(), act)
	if err != nil {
		t.Fatalf("createActivity() failed: %v", err)
	}
	return act
}
