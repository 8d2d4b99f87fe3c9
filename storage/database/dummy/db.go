package dummydb

import (
	"sync"

	"github.com/trezcool/jukwaa/core/activity"
)

type (
	DB struct {
		activity *activityTable
	}

	activityTable struct {
		sync.RWMutex
		table map[string]*activity.Activity
	}
)

func Open() (*DB, error) {
	db := &DB{
		activity: &activityTable{table: make(map[string]*activity.Activity)},
	}
	return db, nil
}
