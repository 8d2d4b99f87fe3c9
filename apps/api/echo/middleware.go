package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jukwaa/core/clocksync"
	"github.com/trezcool/jukwaa/core/stage"
)

// serverTimeMiddleware stamps every response with the server time, unless a handler already did.
func serverTimeMiddleware(now func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			res := ctx.Response()
			res.Before(func() {
				if res.Header().Get(clocksync.HeaderServerTime) == "" {
					setServerTime(ctx, now())
				}
			})
			return next(ctx)
		}
	}
}

func setServerTime(ctx echo.Context, t time.Time) {
	ctx.Response().Header().Set(clocksync.HeaderServerTime, stage.FormatTime(t))
}
