package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jukwaa/core/activity"
)

const (
	headerETag    = "ETag"
	headerIfMatch = "If-Match"
)

type (
	ServerTimeResponse struct {
		ServerTime time.Time `json:"serverTime"`
	}

	ListResponse struct {
		Results    []activity.View `json:"results"`
		Count      int             `json:"count"`
		ServerTime time.Time       `json:"serverTime"`
	}
)

type activityApi struct {
	svc      *activity.Service
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *activity.Service, validate *validator.Validate) {
	api := activityApi{
		svc:      svc,
		validate: validate,
	}

	g.GET("/time", api.serverTime)
	g.POST("/timelines/preview", api.preview)

	ag := g.Group("/activities")
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)

	// authed endpoints
	ag.POST("", api.create, jwt)
	ag.PUT("/:id", api.update, jwt)
	ag.DELETE("/:id", api.destroy, jwt)
}

// respond sends `view` with its version as ETag and its server time in the header.
func respond(ctx echo.Context, code int, view activity.View) error {
	if view.ID != "" {
		ctx.Response().Header().Set(headerETag, formatETag(view.Version))
	}
	setServerTime(ctx, view.ServerTime)
	return ctx.JSON(code, view)
}

// Handlers

func (api *activityApi) serverTime(ctx echo.Context) error {
	now := api.svc.Now()
	setServerTime(ctx, now)
	return ctx.JSON(http.StatusOK, ServerTimeResponse{ServerTime: now})
}

func (api *activityApi) query(ctx echo.Context) error {
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	views, now, err := api.svc.Query(ctx.Request().Context(), filter, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	setServerTime(ctx, now)
	return ctx.JSON(http.StatusOK, ListResponse{Results: views, Count: len(views), ServerTime: now})
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	view, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting activity")
	}
	return respond(ctx, http.StatusOK, view)
}

func (api *activityApi) create(ctx echo.Context) error {
	var data activity.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.Create(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return respond(ctx, http.StatusCreated, view)
}

func (api *activityApi) update(ctx echo.Context) error {
	var ifVersion int
	ifMatch := ctx.Request().Header.Get(headerIfMatch)
	if ifMatch != "" {
		version, ok := parseETag(ifMatch)
		if !ok {
			return errInvalidIfMatch
		}
		ifVersion = version
	}

	var data activity.UpdateActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateActivity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.Update(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data, ifVersion)
	if err != nil {
		if ifVersion > 0 && errors.Cause(err) == activity.ErrVersionConflict {
			return errPreconditionFailed
		}
		return errors.Wrap(err, "updating activity")
	}
	return respond(ctx, http.StatusOK, view)
}

func (api *activityApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// preview checks a timeline draft: it is validated, normalized and resolved, but not saved.
func (api *activityApi) preview(ctx echo.Context) error {
	var data activity.PreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreviewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.Preview(data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, view)
}
