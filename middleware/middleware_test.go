package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/pkg/ratelimit"
)

var epoch = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func issue(t *testing.T, tokens *auth.TokenManager, perms ...string) string {
	t.Helper()
	role := &models.Role{Name: "recepcion", IsActive: true}
	for _, p := range perms {
		role.Permissions = append(role.Permissions, models.Permission{Name: p})
	}
	tok, _, err := tokens.Issue(&models.User{ID: uuid.New(), Name: "Ana", Email: "ana@taller.mx", Role: role})
	require.NoError(t, err)
	return tok
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(GetUserID(r).String()))
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAuthenticate(t *testing.T) {
	log, _ := test.NewNullLogger()
	clk := testclock.NewClock(epoch)
	tokens := auth.NewTokenManager("secret", time.Hour, clk)
	h := Authenticate(tokens, log)(http.HandlerFunc(okHandler))

	good := issue(t, tokens, "client:list")
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"other secret", "Bearer " + issue(t, auth.NewTokenManager("other", time.Hour, clk)), http.StatusUnauthorized},
		{"valid", "Bearer " + good, http.StatusOK},
		{"lower case scheme", "bearer " + good, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.NotEqual(t, uuid.Nil.String(), rec.Body.String())
			}
		})
	}

	clk.Advance(2 * time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired token", errorBody(t, rec))
}

func TestRequirePermission(t *testing.T) {
	log, _ := test.NewNullLogger()
	tokens := auth.NewTokenManager("secret", time.Hour, testclock.NewClock(epoch))
	chain := func(perms ...string) http.Handler {
		return Authenticate(tokens, log)(RequirePermission(log, perms...)(http.HandlerFunc(okHandler)))
	}
	call := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/clients/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	reception := issue(t, tokens, "client:*", "service.active:list")
	admin := issue(t, tokens, "*:*")
	nobody := issue(t, tokens)

	assert.Equal(t, http.StatusOK, call(chain("client:delete"), reception))
	assert.Equal(t, http.StatusForbidden, call(chain("inventory:update"), reception))
	assert.Equal(t, http.StatusForbidden, call(chain("client:list", "inventory:list"), reception))
	assert.Equal(t, http.StatusOK, call(chain("inventory:update"), admin))
	assert.Equal(t, http.StatusForbidden, call(chain("client:list"), nobody))

	// without Authenticate in front there are no claims
	rec := httptest.NewRecorder()
	RequirePermission(log, "client:list")(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	log, _ := test.NewNullLogger()
	limiter := ratelimit.NewMemoryLimiter(2, 10*time.Minute, testclock.NewClock(epoch))
	h := RateLimit(limiter, log)(http.HandlerFunc(okHandler))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/public/chat", nil)
		req.RemoteAddr = ip + ":51234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	rec := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}

func TestRateLimitIgnoresForwardedHeadersFromClients(t *testing.T) {
	log, _ := test.NewNullLogger()
	limiter := ratelimit.NewMemoryLimiter(2, 10*time.Minute, testclock.NewClock(epoch))
	h := RealIP(nil)(RateLimit(limiter, log)(http.HandlerFunc(okHandler)))

	codes := map[int]int{}
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/public/chat", nil)
		req.RemoteAddr = "10.0.0.1:51234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 48, codes[http.StatusTooManyRequests])
}

func TestClientIP(t *testing.T) {
	_, proxies, err := net.ParseCIDR("10.0.0.0/8")
	require.NoError(t, err)
	trusted := []*net.IPNet{proxies}

	tests := []struct {
		name    string
		remote  string
		forward string
		realIP  string
		want    string
	}{
		{"socket only", "192.0.2.7:4000", "", "", "192.0.2.7"},
		{"untrusted peer ignores forwarded", "192.0.2.7:4000", "203.0.113.9", "198.51.100.2", "192.0.2.7"},
		{"trusted peer uses last hop", "10.0.0.5:4000", "1.1.1.1, 203.0.113.9", "", "203.0.113.9"},
		{"skips chained proxies", "10.0.0.5:4000", "203.0.113.9, 10.1.2.3", "", "203.0.113.9"},
		{"spoofed hop left of client is ignored", "10.0.0.5:4000", "6.6.6.6, 203.0.113.9", "", "203.0.113.9"},
		{"trusted peer real ip", "10.0.0.5:4000", "", "198.51.100.2", "198.51.100.2"},
		{"garbage header", "10.0.0.5:4000", "not-an-ip", "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forward != "" {
				req.Header.Set("X-Forwarded-For", tt.forward)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			var got string
			RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			})).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}

	// without RealIP in the chain only the socket counts
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.7", ClientIP(req))
}

func TestRequestLoggerAndRecover(t *testing.T) {
	log, hook := test.NewNullLogger()
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := RequestLogger(log, testclock.NewClock(epoch))(Recover(log)(boom))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "handler panicked", entries[0].Message)
	last := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, 500, last.Data["status"])
	assert.Equal(t, "/api/v1/inventory", last.Data["path"])
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://taller.mx/"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/clients", nil)
	req.Header.Set("Origin", "https://taller.mx")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://taller.mx", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
