package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
)

const activityColumns = "id, title, description, cover_url, author_id, timeline, start_date, end_date, version, created_at, updated_at"

// activityRow is an activity as stored in the `activity` table.
// The canonical timeline is stored as a JSON document; start_date & end_date are copies used for filtering.
type activityRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	CoverURL    null.String `db:"cover_url"`
	AuthorID    string      `db:"author_id"`
	Timeline    string      `db:"timeline"`
	StartDate   time.Time   `db:"start_date"`
	EndDate     time.Time   `db:"end_date"`
	Version     int         `db:"version"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func newActivityRow(act activity.Activity) (activityRow, error) {
	tl, err := json.Marshal(act.Timeline)
	if err != nil {
		return activityRow{}, errors.Wrap(err, "encoding timeline")
	}
	return activityRow{
		ID:          act.ID,
		Title:       act.Title,
		Description: act.Description,
		CoverURL:    null.NewString(act.CoverURL, act.CoverURL != ""),
		AuthorID:    act.AuthorID,
		Timeline:    string(tl),
		StartDate:   act.Timeline.StartDate,
		EndDate:     act.Timeline.EndDate,
		Version:     act.Version,
		CreatedAt:   act.CreatedAt,
		UpdatedAt:   act.UpdatedAt,
	}, nil
}

func (row activityRow) toActivity() (activity.Activity, error) {
	var tl stage.Timeline
	if err := json.Unmarshal([]byte(row.Timeline), &tl); err != nil {
		return activity.Activity{}, errors.Wrapf(err, "decoding timeline of activity %s", row.ID)
	}
	return activity.Activity{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		CoverURL:    row.CoverURL.String,
		AuthorID:    row.AuthorID,
		Timeline:    tl,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}, nil
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity) (activity.Activity, error) {
	row, err := newActivityRow(act)
	if err != nil {
		return activity.Activity{}, err
	}

	q := `INSERT INTO activity (` + activityColumns + `)
		VALUES (:id, :title, :description, :cover_url, :author_id, :timeline, :start_date, :end_date, :version, :created_at, :updated_at)`
	err = retryOp(defaultRetryConfig, func() error {
		_, err := repo.db.NamedExecContext(ctx, q, row)
		return err
	})
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo *activityRepository) GetActivityByID(ctx context.Context, id string) (activity.Activity, error) {
	var row activityRow
	q := repo.db.Rebind(`SELECT ` + activityColumns + ` FROM activity WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return activity.Activity{}, activity.ErrNotFound
		}
		return activity.Activity{}, errors.Wrap(err, "selecting activity")
	}
	return row.toActivity()
}

func (repo *activityRepository) QueryActivities(
	ctx context.Context,
	filter activity.QueryFilter,
	ordering ...core.DBOrdering,
) ([]activity.Activity, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.AuthorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if !filter.StartFrom.IsZero() {
		where = append(where, "start_date >= ?")
		args = append(args, filter.StartFrom.UTC())
	}
	if !filter.StartTo.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, filter.StartTo.UTC())
	}

	q := `SELECT ` + activityColumns + ` FROM activity`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + core.OrderByClause(ordering, activity.OrderingFields, activity.DefaultOrdering) + ", id ASC"

	var rows []activityRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting activities")
	}

	acts := make([]activity.Activity, 0, len(rows))
	for _, row := range rows {
		act, err := row.toActivity()
		if err != nil {
			return nil, err
		}
		acts = append(acts, act)
	}
	return acts, nil
}

func (repo *activityRepository) UpdateActivity(
	ctx context.Context,
	act activity.Activity,
	prevVersion int,
) (activity.Activity, error) {
	row, err := newActivityRow(act)
	if err != nil {
		return activity.Activity{}, err
	}

	q := repo.db.Rebind(`UPDATE activity
		SET title = ?, description = ?, cover_url = ?, timeline = ?, start_date = ?, end_date = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`)
	var affected int64
	err = retryOp(defaultRetryConfig, func() error {
		res, err := repo.db.ExecContext(
			ctx, q,
			row.Title, row.Description, row.CoverURL, row.Timeline, row.StartDate, row.EndDate, row.Version, row.UpdatedAt,
			row.ID, prevVersion,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "updating activity")
	}

	if affected == 0 {
		if _, err := repo.GetActivityByID(ctx, act.ID); err != nil {
			return activity.Activity{}, err
		}
		return activity.Activity{}, activity.ErrVersionConflict
	}
	return repo.GetActivityByID(ctx, act.ID)
}

func (repo *activityRepository) DeleteActivity(ctx context.Context, id string) error {
	q := repo.db.Rebind(`DELETE FROM activity WHERE id = ?`)
	var affected int64
	err := retryOp(defaultRetryConfig, func() error {
		res, err := repo.db.ExecContext(ctx, q, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	if affected == 0 {
		return activity.ErrNotFound
	}
	return nil
}
