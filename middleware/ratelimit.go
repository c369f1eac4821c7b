package middleware

import (
	"fmt"
	"math"
	"net/http"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/pkg/ratelimit"
	"tallerpro.mx/shop/utils"
)

// RateLimit rejects callers over quota with 429. When the limiter itself
// fails the request is let through.
func RateLimit(limiter ratelimit.Limiter, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			ok, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				log.WithError(err).WithField("ip", ip).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				secs := int(math.Ceil(limiter.Window().Seconds()))
				w.Header().Set("Retry-After", fmt.Sprint(secs))
				utils.WriteError(w, log, errors.QuotaLimitExceededf("too many requests, try again in %d seconds", secs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
