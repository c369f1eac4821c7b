package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/internal/testdb"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/pkg/catalog"
	"tallerpro.mx/shop/pkg/chatbot"
	"tallerpro.mx/shop/pkg/ratelimit"
	"tallerpro.mx/shop/pkg/storage"
	"tallerpro.mx/shop/pkg/tracking"
)

const password = "correct-horse"

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testdb.Open(t)
	log := testdb.Logger()
	clk := testclock.NewClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	testdb.User(t, db, "admin@taller.mx", password, "admin")
	testdb.User(t, db, "mecanico@taller.mx", password, "mecanico")

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", time.Hour, clk)
	tr := tracking.NewService(db, tracking.WithClock(clk), tracking.WithLogger(log), tracking.WithAttachmentStore(store))
	services := catalog.NewServices(db)
	branches := []config.Branch{{Name: "Centro", Location: orb.Point{-99.1332, 19.4326}}}
	shop := config.Shop{Name: "Taller", Hours: "9 a 18"}

	h := RegisterRoutes(Deps{
		DB:          db,
		Log:         log,
		Clock:       clk,
		Tokens:      tokens,
		Auth:        auth.NewService(db, tokens, auth.WithClock(clk), auth.WithLogger(log)),
		Users:       auth.NewUsers(db),
		Roles:       auth.NewRoles(db),
		Tracking:    tr,
		Clients:     catalog.NewClients(db),
		Vehicles:    catalog.NewVehicles(db),
		Employees:   catalog.NewEmployees(db),
		Services:    services,
		Inventory:   catalog.NewInventory(db, log),
		Quotes:      catalog.NewQuotes(db),
		Bot:         chatbot.New(shop, services, tr, chatbot.WithLogger(log), chatbot.WithBranches(branches)),
		ChatLimiter: ratelimit.NewMemoryLimiter(2, 10*time.Minute, clk),
		Branches:    branches,
		UploadDir:   store.Dir,
		CORSOrigins: []string{"*"},
	})
	return &server{t: t, handler: h}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "203.0.113.5:4000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(email string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var session auth.Session
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(s.t, session.Token)
	return session.Token
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServiceLifecycle(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin@taller.mx")

	rec := s.do(http.MethodPost, "/api/v1/clients", admin, map[string]string{"name": "Ana Torres", "phone": "555-0101"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var client models.Client
	decodeInto(t, rec, &client)
	assert.Equal(t, "CLI-000001", client.Code)

	rec = s.do(http.MethodPost, "/api/v1/vehicles", admin, map[string]interface{}{
		"client_code": client.Code, "plate": "abc-123", "type": "car", "brand": "Nissan", "model": "Versa", "year": 2019,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/catalog", admin, map[string]interface{}{"name": "Frenos", "price": 1200})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var brakes models.ServiceCatalogItem
	decodeInto(t, rec, &brakes)

	// unknown client code is a bad reference, not a missing resource
	rec = s.do(http.MethodPost, "/api/v1/services/active", admin, map[string]interface{}{
		"client_code": "CLI-999999", "plate": "ABC123", "service_ids": []string{brakes.ID.String()},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/services/active", admin, map[string]interface{}{
		"client_code": client.Code, "plate": "ABC 123", "service_ids": []string{brakes.ID.String()}, "notes": "ruido",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job models.ActiveService
	decodeInto(t, rec, &job)
	assert.Equal(t, models.StageReception, job.Stage)
	require.Len(t, job.TrackingCode, tracking.CodeLength)

	rec = s.do(http.MethodGet, "/api/v1/services/active?q=ana", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []models.ActiveService
	decodeInto(t, rec, &jobs)
	require.Len(t, jobs, 1)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = s.do(http.MethodPatch, "/api/v1/services/active/"+job.ID.String()+"/stage", admin, map[string]string{"stage": "Diagnóstico técnico"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved struct {
		OK  bool                  `json:"ok"`
		Job *models.ActiveService `json:"job"`
	}
	decodeInto(t, rec, &moved)
	assert.True(t, moved.OK)
	assert.Equal(t, models.StageDiagnosis, moved.Job.Stage)

	rec = s.do(http.MethodGet, "/public/track/"+job.TrackingCode, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st tracking.Status
	decodeInto(t, rec, &st)
	assert.Equal(t, "Diagnóstico técnico", st.StageLabel)
	assert.Equal(t, "ABC123", st.Plate)

	rec = s.do(http.MethodPatch, "/api/v1/services/active/"+job.ID.String()+"/stage", admin, map[string]string{"stage": "cierre", "notes": "entregado"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var closed struct {
		OK        bool                     `json:"ok"`
		Completed *models.CompletedService `json:"completed"`
	}
	decodeInto(t, rec, &closed)
	require.NotNil(t, closed.Completed)
	assert.Equal(t, []string{"Frenos"}, closed.Completed.ServiceNames())

	rec = s.do(http.MethodGet, "/api/v1/services/active/"+job.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/services/completed", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = s.do(http.MethodGet, "/api/v1/services/completed/export?from=2025-06-01&to=2025-06-02", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "servicios_concluidos_20250601_20250602.xlsx")

	rec = s.do(http.MethodGet, "/public/track/"+job.TrackingCode, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &st)
	assert.Equal(t, models.StatusFinished, st.Status)

	// the client still has a vehicle on file
	rec = s.do(http.MethodDelete, "/api/v1/clients/"+client.ID.String(), admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelJob(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin@taller.mx")

	rec := s.do(http.MethodPost, "/api/v1/clients", admin, map[string]string{"name": "Luis"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, "/api/v1/vehicles", admin, map[string]interface{}{
		"client_code": "CLI-000001", "plate": "XYZ987", "type": "motorcycle", "brand": "Honda", "model": "CB190",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, "/api/v1/services/active", admin, map[string]interface{}{
		"client_code": "CLI-000001", "plate": "XYZ987", "service_ids": []string{},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job models.ActiveService
	decodeInto(t, rec, &job)

	rec = s.do(http.MethodDelete, "/api/v1/services/active/"+job.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodDelete, "/api/v1/services/active/"+job.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachmentUpload(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin@taller.mx")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/clients", admin, map[string]string{"name": "Luis"}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/vehicles", admin, map[string]interface{}{
		"client_code": "CLI-000001", "plate": "XYZ987", "type": "car", "brand": "VW", "model": "Jetta",
	}).Code)
	rec := s.do(http.MethodPost, "/api/v1/services/active", admin, map[string]interface{}{
		"client_code": "CLI-000001", "plate": "XYZ987",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job models.ActiveService
	decodeInto(t, rec, &job)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "recepcion.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4\n% test document\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services/active/"+job.ID.String()+"/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	up := httptest.NewRecorder()
	s.handler.ServeHTTP(up, req)
	require.Equal(t, http.StatusCreated, up.Code, up.Body.String())
	var att models.Attachment
	decodeInto(t, up, &att)
	assert.Equal(t, "application/pdf", att.ContentType)

	rec = s.do(http.MethodGet, att.URL, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/services/active/"+job.ID.String()+"/attachments", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []models.Attachment
	decodeInto(t, rec, &files)
	assert.Len(t, files, 1)
}

func TestAuthorization(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/clients", "", nil).Code)

	rec := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "mecanico@taller.mx", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mech := s.login("mecanico@taller.mx")
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/clients", mech, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/clients", mech, map[string]string{"name": "X"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", mech, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/services/completed/export", mech, nil).Code)

	rec = s.do(http.MethodGet, "/api/v1/auth/me", mech, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User        models.User `json:"user"`
		Permissions []string    `json:"permissions"`
	}
	decodeInto(t, rec, &me)
	assert.Equal(t, "mecanico@taller.mx", me.User.Email)
	assert.Contains(t, me.Permissions, models.PermActiveUpdate)

	admin := s.login("admin@taller.mx")
	rec = s.do(http.MethodGet, "/api/v1/permissions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/clients/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicEndpoints(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin@taller.mx")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/catalog", admin, map[string]interface{}{"name": "Afinación", "price": 1800}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/catalog", admin, map[string]interface{}{"name": "Pintura", "price": 9000, "is_active": false}).Code)

	rec := s.do(http.MethodGet, "/public/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var services []map[string]interface{}
	decodeInto(t, rec, &services)
	require.Len(t, services, 1)
	assert.Equal(t, "Afinación", services[0]["name"])
	assert.NotContains(t, services[0], "id")

	rec = s.do(http.MethodGet, "/public/branches", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]string `json:"properties"`
		} `json:"features"`
	}
	decodeInto(t, rec, &fc)
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Centro", fc.Features[0].Properties["name"])
	assert.Equal(t, []float64{-99.1332, 19.4326}, fc.Features[0].Geometry.Coordinates)

	rec = s.do(http.MethodPost, "/public/quotes", "", map[string]string{"name": "Marta", "phone": "555-0199", "service": "Afinación"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodGet, "/api/v1/quotes?status=new", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/public/track/ABCDEFGH", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestChatIsRateLimited(t *testing.T) {
	s := newServer(t)
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/public/chat", "", map[string]string{"message": "¿A qué hora abren?"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ans chatbot.Answer
		decodeInto(t, rec, &ans)
		assert.Contains(t, ans.Text, "9 a 18")
	}
	rec := s.do(http.MethodPost, "/public/chat", "", map[string]string{"message": "hola"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))

	// a forged forwarding header from a direct client does not reset the quota
	b, err := json.Marshal(map[string]string{"message": "hola"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/public/chat", bytes.NewReader(b))
	req.RemoteAddr = "203.0.113.5:4001"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.77")
	forged := httptest.NewRecorder()
	s.handler.ServeHTTP(forged, req)
	assert.Equal(t, http.StatusTooManyRequests, forged.Code)
}
