package httpserver

import (
	"math"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/thereiwas/internal/platform/errors"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry  = 5 * time.Minute
	rateLimitedMessage = "too many sign-in attempts, try again later"
)

// newRateLimiter limits requests per client IP with a token bucket. Denied
// requests become a rate_limited error telling the client when one token is back.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	retryAfter := 1
	if ratePerSecond > 0 && ratePerSecond < 1 {
		retryAfter = int(math.Ceil(1 / ratePerSecond))
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return apperrors.RateLimitedError(rateLimitedMessage, retryAfter)
		},
	})
}
