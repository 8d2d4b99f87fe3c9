package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/stage"
	"github.com/trezcool/jukwaa/core/user"
)

// name of the user stage of the default timeline
const defaultStageName = "Ongoing"

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		GetActivityByID(ctx context.Context, id string) (Activity, error)
		// QueryActivities applies AND operation on the stored fields of QueryFilter; QueryFilter.Stage is ignored.
		// QueryFilter.Search does a case-insensitive match on one of Activity.Title or Activity.Description.
		QueryActivities(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Activity, error)
		// UpdateActivity replaces the stored activity only if its version is still `prevVersion`,
		// otherwise it fails with ErrVersionConflict.
		UpdateActivity(ctx context.Context, act Activity, prevVersion int) (Activity, error)
		DeleteActivity(ctx context.Context, id string) error
	}

	Service struct {
		repo        Repository
		log         core.Logger
		normalizer  stage.Normalizer
		now         func() time.Time
		newID       func() string
		strictOrder bool
		maxStages   int
	}

	Option func(svc *Service)
)

// WithNowFunc sets the clock every timeline is resolved against.
func WithNowFunc(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func WithNormalizer(n stage.Normalizer) Option {
	return func(svc *Service) { svc.normalizer = n }
}

func WithIDFunc(newID func() string) Option {
	return func(svc *Service) { svc.newID = newID }
}

// WithStrictOrder rejects stage lists that are not submitted in chronological order.
func WithStrictOrder(strict bool) Option {
	return func(svc *Service) { svc.strictOrder = strict }
}

// WithMaxStages limits the number of submitted stages; 0 means no limit.
func WithMaxStages(max int) Option {
	return func(svc *Service) { svc.maxStages = max }
}

func NewService(repo Repository, logger core.Logger, opts ...Option) *Service {
	svc := &Service{
		repo:        repo,
		log:         logger,
		now:         time.Now,
		newID:       uuid.NewString,
		strictOrder: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Now returns the service clock's current time; every View is resolved against it.
func (svc *Service) Now() time.Time {
	return svc.now().Round(0).UTC()
}

func (svc *Service) Create(ctx context.Context, actor user.User, na NewActivity) (View, error) {
	if actor.IsAnonymous() {
		return View{}, ErrAuthorizationDenied
	}

	now := svc.Now()
	tl, err := svc.draftTimeline(na.Stages, creationFallbacks(now, na.StartDate, na.EndDate))
	if err != nil {
		return View{}, err
	}

	act := Activity{
		ID:          svc.newID(),
		Title:       na.Title,
		Description: na.Description,
		CoverURL:    na.CoverURL,
		AuthorID:    actor.ID,
		Timeline:    tl,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	act, err = svc.repo.CreateActivity(ctx, act)
	if err != nil {
		return View{}, errors.Wrap(err, "creating activity")
	}
	return NewView(act, now), nil
}

// Update replaces the metadata and/or timeline of an activity. A positive `ifVersion` must match the stored version.
//  - with a stage list, the timeline is rebuilt from it, missing system stages keeping their current start times
//  - with dates only, the kickoff & closing stages are moved and the other stages are kept as they are
func (svc *Service) Update(ctx context.Context, actor user.User, id string, ua UpdateActivity, ifVersion int) (View, error) {
	act, err := svc.repo.GetActivityByID(ctx, id)
	if err != nil {
		return View{}, errors.Wrap(err, "getting activity")
	}
	if !actor.CanManage(act.AuthorID) {
		return View{}, ErrAuthorizationDenied
	}
	if ifVersion > 0 && ifVersion != act.Version {
		return View{}, ErrVersionConflict
	}

	if ua.Title != nil {
		act.Title = *ua.Title
	}
	if ua.Description != nil {
		act.Description = *ua.Description
	}
	if ua.CoverURL != nil {
		act.CoverURL = *ua.CoverURL
	}

	fb := act.Timeline.Fallbacks()
	if ua.StartDate != nil {
		fb.Kickoff = *ua.StartDate
	}
	if ua.EndDate != nil {
		fb.Closing = *ua.EndDate
	}

	switch {
	case ua.Stages != nil:
		tl, err := svc.buildTimeline(ua.Stages, fb)
		if err != nil {
			return View{}, err
		}
		act.Timeline = tl
	case ua.StartDate != nil || ua.EndDate != nil:
		tl, err := svc.moveBoundaries(act.Timeline, fb)
		if err != nil {
			return View{}, err
		}
		act.Timeline = tl
	}

	prevVersion := act.Version
	act.Version++
	act.UpdatedAt = svc.Now()
	act, err = svc.repo.UpdateActivity(ctx, act, prevVersion)
	if err != nil {
		return View{}, errors.Wrap(err, "updating activity")
	}
	return NewView(act, act.UpdatedAt), nil
}

func (svc *Service) Get(ctx context.Context, id string) (View, error) {
	act, err := svc.repo.GetActivityByID(ctx, id)
	if err != nil {
		return View{}, errors.Wrap(err, "getting activity")
	}
	return NewView(act, svc.Now()), nil
}

// Query returns the views of the activities matching `filter`, all resolved against the returned server time.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]View, time.Time, error) {
	filter.Clean()
	acts, err := svc.repo.QueryActivities(ctx, filter, ordering...)
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "querying activities")
	}

	now := svc.Now()
	views := make([]View, 0, len(acts))
	for _, act := range acts {
		view := NewView(act, now)
		if filter.Stage != "" && (view.CurrentStage == nil || view.CurrentStage.Key != filter.Stage) {
			continue
		}
		views = append(views, view)
	}
	return views, now, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	act, err := svc.repo.GetActivityByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting activity")
	}
	if !actor.CanManage(act.AuthorID) {
		return ErrAuthorizationDenied
	}
	if err := svc.repo.DeleteActivity(ctx, id); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	svc.log.Info(fmt.Sprintf("activity %s deleted", id), actor)
	return nil
}

// Preview validates and normalizes a timeline draft the way Create does, without saving anything.
func (svc *Service) Preview(pr PreviewRequest) (View, error) {
	now := svc.Now()
	tl, err := svc.draftTimeline(pr.Stages, creationFallbacks(now, pr.StartDate, pr.EndDate))
	if err != nil {
		return View{}, err
	}
	return NewView(Activity{Timeline: tl}, now), nil
}

// draftTimeline builds the timeline of a new activity; without stages, it is the default timeline.
func (svc *Service) draftTimeline(raw []stage.Input, fb stage.Fallbacks) (stage.Timeline, error) {
	if len(raw) == 0 {
		return svc.normalize(defaultStages(fb), fb, stage.ValidateOptions{AllowUnordered: true})
	}
	return svc.buildTimeline(raw, fb)
}

// buildTimeline validates `raw` and normalizes it. Missing system stages start at their `fb` times.
func (svc *Service) buildTimeline(raw []stage.Input, fb stage.Fallbacks) (stage.Timeline, error) {
	if svc.maxStages > 0 && len(raw) > svc.maxStages {
		return stage.Timeline{}, core.NewValidationError(nil, core.FieldError{
			Field: "stages",
			Error: fmt.Sprintf("an activity cannot have more than %d stages", svc.maxStages),
		})
	}

	return svc.normalize(raw, fb, stage.ValidateOptions{AllowUnordered: !svc.strictOrder})
}

func (svc *Service) normalize(raw []stage.Input, fb stage.Fallbacks, opts stage.ValidateOptions) (stage.Timeline, error) {
	if err := stage.Validate(raw, fb, opts); err != nil {
		return stage.Timeline{}, err
	}
	tl, err := svc.normalizer.Normalize(raw, fb)
	if err != nil {
		return stage.Timeline{}, err
	}
	return tl, nil
}

// moveBoundaries re-normalizes `tl` with its kickoff & closing moved to the ones of `fb`.
func (svc *Service) moveBoundaries(tl stage.Timeline, fb stage.Fallbacks) (stage.Timeline, error) {
	raw := tl.Inputs()
	for i := range raw {
		switch raw[i].Key {
		case stage.KeyKickoff:
			raw[i].StartAt = stage.FormatTime(fb.Kickoff)
		case stage.KeyClosing:
			raw[i].StartAt = stage.FormatTime(fb.Closing)
		}
	}
	return svc.normalize(raw, fb, stage.ValidateOptions{AllowUnordered: true})
}

// creationFallbacks returns (now, start-or-now, end-or-start-or-now).
func creationFallbacks(now time.Time, start, end *time.Time) stage.Fallbacks {
	fb := stage.Fallbacks{Preparation: now, Kickoff: now, Closing: now}
	if start != nil {
		fb.Kickoff = *start
		fb.Closing = *start
	}
	if end != nil {
		fb.Closing = *end
	}
	return fb
}

// defaultStages returns the stages of an activity created without any:
// preparation, kickoff, an "Ongoing" stage halfway to closing, and closing.
// Preparation never starts after kickoff.
func defaultStages(fb stage.Fallbacks) []stage.Input {
	prep := fb.Preparation
	if fb.Kickoff.Before(prep) {
		prep = fb.Kickoff
	}
	midpoint := fb.Kickoff.Add(fb.Closing.Sub(fb.Kickoff) / 2)
	return []stage.Input{
		{Key: stage.KeyPreparation, StartAt: stage.FormatTime(prep)},
		{Key: stage.KeyKickoff, StartAt: stage.FormatTime(fb.Kickoff)},
		{Name: defaultStageName, StartAt: stage.FormatTime(midpoint)},
		{Key: stage.KeyClosing, StartAt: stage.FormatTime(fb.Closing)},
	}
}
