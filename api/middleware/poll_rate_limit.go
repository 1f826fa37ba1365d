package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/learnhub/payrecon/api/responses"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/redis"
)

// PollRateLimit caps verification polls per user in a fixed window. It runs
// after Auth. When the counter store fails the request is let through.
func PollRateLimit(store redis.RateLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, ok := UserIDFromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := store.FixedWindowAllow(ctx, "poll:"+userID.String(), int64(limit), window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "poll.rate_limit.unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          limit,
						"window_seconds": int(window.Seconds()),
					})
					logg.Warn(logCtx, "poll.rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification attempts"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
