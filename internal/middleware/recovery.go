package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recovery returns middleware that recovers from panics, logs the stack
// trace, and returns a 500 to the client. API routes get a JSON body.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (returnErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", c.Request().Method),
						slog.String("path", c.Request().URL.Path),
						slog.String("request_id", GetRequestID(c)),
					)

					if c.Response().Committed {
						returnErr = fmt.Errorf("panic after response committed: %v", r)
						return
					}
					if IsAPI(c) {
						returnErr = c.JSON(http.StatusInternalServerError, map[string]string{
							"error":   "internal_error",
							"message": "An unexpected error occurred. Please try again.",
						})
						return
					}
					returnErr = c.String(http.StatusInternalServerError, "Internal Server Error")
				}
			}()

			return next(c)
		}
	}
}
