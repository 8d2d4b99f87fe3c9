package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/stage"
)

// Activity owns exactly one canonical stage timeline. Version is bumped by every update.
type Activity struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	CoverURL    string         `json:"coverUrl"`
	AuthorID    string         `json:"authorId"`
	Timeline    stage.Timeline `json:"timeline"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"` // UTC
	UpdatedAt   time.Time      `json:"updatedAt"` // UTC
}

// StageView is a stage with its status at the response's server time.
type StageView struct {
	stage.Stage
	Status stage.Status `json:"status"`
}

// View is an Activity as served to clients: its timeline resolved against the server time.
type View struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	CoverURL     string       `json:"coverUrl"`
	AuthorID     string       `json:"authorId"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Stages       []StageView  `json:"stages"`
	StartDate    time.Time    `json:"startDate"`
	EndDate      time.Time    `json:"endDate"`
	CurrentStage *stage.Stage `json:"currentStage"`
	ServerTime   time.Time    `json:"serverTime"`
}

// Timeline rebuilds the canonical timeline carried by the view.
func (v View) Timeline() stage.Timeline {
	tl := stage.Timeline{
		Stages:    make([]stage.Stage, 0, len(v.Stages)),
		StartDate: v.StartDate,
		EndDate:   v.EndDate,
	}
	for _, s := range v.Stages {
		tl.Stages = append(tl.Stages, s.Stage)
	}
	return tl
}

// NewView resolves the timeline of `act` at `now`.
func NewView(act Activity, now time.Time) View {
	res := stage.Resolve(act.Timeline, now)
	stages := make([]StageView, 0, len(act.Timeline.Stages))
	for _, s := range act.Timeline.Stages {
		stages = append(stages, StageView{Stage: s, Status: res.Statuses[s.Key]})
	}
	return View{
		ID:           act.ID,
		Title:        act.Title,
		Description:  act.Description,
		CoverURL:     act.CoverURL,
		AuthorID:     act.AuthorID,
		Version:      act.Version,
		CreatedAt:    act.CreatedAt,
		UpdatedAt:    act.UpdatedAt,
		Stages:       stages,
		StartDate:    act.Timeline.StartDate,
		EndDate:      act.Timeline.EndDate,
		CurrentStage: res.Current,
		ServerTime:   now,
	}
}

// NewActivity contains information needed to create a new Activity.
// Without Stages, a default timeline is built from the dates.
type NewActivity struct {
	Title       string        `json:"title" validate:"required,notblank,max=120"`
	Description string        `json:"description" validate:"max=5000"`
	CoverURL    string        `json:"coverUrl" validate:"omitempty,url"`
	StartDate   *time.Time    `json:"startDate"`
	EndDate     *time.Time    `json:"endDate"`
	Stages      []stage.Input `json:"stages" validate:"omitempty,dive"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.CoverURL = core.CleanString(na.CoverURL)
	na.StartDate = core.UTCPtr(na.StartDate)
	na.EndDate = core.UTCPtr(na.EndDate)
	return validate.Struct(na)
}

// UpdateActivity defines what information may be provided to modify an existing Activity.
// A nil field is left untouched.
type UpdateActivity struct {
	Title       *string       `json:"title" validate:"omitempty,notblank,max=120"`
	Description *string       `json:"description" validate:"omitempty,max=5000"`
	CoverURL    *string       `json:"coverUrl" validate:"omitempty,url"`
	StartDate   *time.Time    `json:"startDate"`
	EndDate     *time.Time    `json:"endDate"`
	Stages      []stage.Input `json:"stages" validate:"omitempty,dive"`
}

func (ua *UpdateActivity) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ua.Title, ua.Description, ua.CoverURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	ua.StartDate = core.UTCPtr(ua.StartDate)
	ua.EndDate = core.UTCPtr(ua.EndDate)
	return validate.Struct(ua)
}

// PreviewRequest is a timeline draft checked without being saved.
type PreviewRequest struct {
	StartDate *time.Time    `json:"startDate"`
	EndDate   *time.Time    `json:"endDate"`
	Stages    []stage.Input `json:"stages" validate:"omitempty,dive"`
}

func (pr *PreviewRequest) Validate(validate *validator.Validate) error {
	pr.StartDate = core.UTCPtr(pr.StartDate)
	pr.EndDate = core.UTCPtr(pr.EndDate)
	return validate.Struct(pr)
}

var (
	// OrderingFields maps the fields activities can be ordered by to their column names.
	OrderingFields = map[string]string{
		"title":      "title",
		"start_date": "start_date",
		"end_date":   "end_date",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	DefaultOrdering = core.DBOrdering{Field: "start_date"}
)

type QueryFilter struct {
	Search    string    `query:"search"`
	AuthorID  string    `query:"author"`
	StartFrom time.Time `query:"start_from"`
	StartTo   time.Time `query:"start_to"`
	Stage     string    `query:"stage"` // key of the current stage, at read time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.AuthorID == "" && qf.StartFrom.IsZero() && qf.StartTo.IsZero() && qf.Stage == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AuthorID = core.CleanString(qf.AuthorID)
	qf.Stage = core.CleanString(qf.Stage)
}
