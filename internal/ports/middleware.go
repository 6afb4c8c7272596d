package ports

import (
	"log/slog"
	"net/http"

	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/ratelimiting"
	"github.com/operately/pagedata/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 0 {
		return func(h http.HandlerFunc) http.HandlerFunc {
			return h
		}
	}
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

func onLimitExceeded(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// buildPortMiddleware is the middleware stack shared by every port.
// Each port gets its own rate limit buckets.
func buildPortMiddleware(
	portName string,
	limits portLimits,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.ipRefill, limits.ipBurst)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc)

	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.userRefill, limits.userBurst)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	return ComposeMiddlewares(
		buildMetricsMiddleware(portName),
		logging.NewRequestLoggerMiddleware(rootLogger.With("port", portName)),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(portName),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
		NewRateLimitMiddleware(userIDRateLimiter, onLimitExceeded),
	)
}

type portLimits struct {
	ipRefill   ratelimiting.RefillPerSecond
	ipBurst    ratelimiting.BurstSize
	userRefill ratelimiting.RefillPerSecond
	userBurst  ratelimiting.BurstSize
}

var (
	readLimits = portLimits{
		ipRefill:   8,
		ipBurst:    480,
		userRefill: 4,
		userBurst:  240,
	}
	writeLimits = portLimits{
		ipRefill:   1,
		ipBurst:    60,
		userRefill: 0.5,
		userBurst:  30,
	}
)
