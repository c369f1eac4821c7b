package middleware

import (
	"net/http"
	"strings"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/utils"
)

// RequirePermission lets the request through only when the token grants
// every listed permission. It must run after Authenticate.
func RequirePermission(log logrus.FieldLogger, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				utils.WriteError(w, log, errors.Unauthorizedf("not authenticated"))
				return
			}
			if !auth.Authorize(permissions, claims.Permissions) {
				log.WithFields(logrus.Fields{
					"user":     claims.UserID,
					"role":     claims.Role,
					"required": permissions,
					"path":     r.URL.Path,
				}).Info("permission denied")
				utils.WriteError(w, log, errors.Forbiddenf("missing permission %s", strings.Join(permissions, ", ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
