package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindQueryFilter reads an activity.QueryFilter from the query params.
// Dates are ISO-8601; zone-less dates are read as UTC.
func bindQueryFilter(ctx echo.Context) (activity.QueryFilter, error) {
	filter := activity.QueryFilter{
		Search:   ctx.QueryParam("search"),
		AuthorID: ctx.QueryParam("author"),
		Stage:    ctx.QueryParam("stage"),
	}

	var fldErrs []core.FieldError
	parseDate := func(param string) time.Time {
		raw := ctx.QueryParam(param)
		if raw == "" {
			return time.Time{}
		}
		t, ok := stage.ParseTime(raw)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: param, Error: "invalid date " + strconv.Quote(raw)})
		}
		return t
	}
	filter.StartFrom = parseDate("start_from")
	filter.StartTo = parseDate("start_to")

	if len(fldErrs) > 0 {
		return activity.QueryFilter{}, core.NewValidationError(nil, fldErrs...)
	}
	return filter, nil
}

// parseETag reads the activity version from an `If-Match` header: `"3"`, `W/"3"` or `*` (any version, 0).
func parseETag(header string) (int, bool) {
	header = strings.TrimSpace(header)
	if header == "*" {
		return 0, true
	}
	header = strings.TrimPrefix(header, "W/")
	version, err := strconv.Atoi(strings.Trim(header, `"`))
	if err != nil || version < 1 {
		return 0, false
	}
	return version, true
}

func formatETag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}
