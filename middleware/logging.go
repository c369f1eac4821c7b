package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger, clk clock.Clock) func(http.Handler) http.Handler {
	if clk == nil {
		clk = clock.WallClock
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clk.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			fields := logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"bytes":    rec.bytes,
				"duration": clk.Now().Sub(start).String(),
				"ip":       ClientIP(r),
			}
			entry := log.WithFields(fields)
			switch {
			case rec.status >= 500:
				entry.Error("request")
			case rec.status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
		})
	}
}

// Recover turns a panic into a 500 and logs the stack.
func Recover(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					log.WithFields(logrus.Fields{
						"panic": p,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					}).Error("handler panicked")
					utils.WriteJSON(w, http.StatusInternalServerError, apperr.Response{Error: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
