package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout sets a context deadline on each request and answers 504
// when the handler outlives it. The WebSocket feed is exempt: those
// connections are long-lived by design, as is any SSE passthrough.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasSuffix(c.Request().URL.Path, "/ws") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				// Handlers that watch the context may surface the expiry
				// themselves; normalize it to the same 504.
				if errors.Is(err, context.DeadlineExceeded) {
					return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
				}
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					if !c.Response().Committed {
						return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
					}
					return nil
				}
				return ctx.Err()
			}
		}
	}
}
