package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallerpro.mx/shop/internal/testdb"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/pkg/tracking"
)

func TestDateQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?from=2025-03-01&to=2025-03-31&at=2025-03-05T10:00:00Z&bad=marzo", nil)

	from, err := dateQuery(r, "from", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), from.UTC())

	// a bare end date covers the whole day
	to, err := dateQuery(r, "to", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), to.UTC())

	// a full timestamp is taken as is even when inclusive
	at, err := dateQuery(r, "at", true)
	require.NoError(t, err)
	assert.Equal(t, 10, at.UTC().Hour())
	assert.Equal(t, 5, at.UTC().Day())

	missing, err := dateQuery(r, "until", true)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = dateQuery(r, "bad", false)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
}

func TestPathID(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"})
	_, err := pathID(r)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	r = mux.SetURLVars(r, map[string]string{"id": "6f1c2b1e-2a6c-4c36-9a57-3a1a4f0e9d10"})
	id, err := pathID(r)
	require.NoError(t, err)
	assert.Equal(t, "6f1c2b1e-2a6c-4c36-9a57-3a1a4f0e9d10", id.String())
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	w := httptest.NewRecorder()

	err := decode(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &v)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	err = decode(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")), &v)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	big := `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`
	err = decode(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), &v)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	require.NoError(t, decode(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ana","extra":1}`)), &v))
	assert.Equal(t, "Ana", v.Name)
}

func TestBoolQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?active=false&x=maybe", nil)
	b, err := boolQuery(r, "active")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.False(t, *b)

	b, err = boolQuery(r, "other")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = boolQuery(r, "x")
	assert.Error(t, err)
}

func TestWriteListNeverNull(t *testing.T) {
	w := httptest.NewRecorder()
	writeList[string](w, nil, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"))
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestCreateServiceLogsOnce(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.Client(t, db, "CLI-000001", "Ana Torres")
	testdb.Vehicle(t, db, client.ID, "ABC123")
	log, hook := test.NewNullLogger()
	h := NewServiceHandler(tracking.NewService(db, tracking.WithLogger(log)), log)

	body := `{"client_code":"CLI-000001","plate":"ABC123"}`
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/services/active", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	opened := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "service opened" {
			opened++
		}
	}
	assert.Equal(t, 1, opened)
}
