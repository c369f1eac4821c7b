package routes

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/handlers"
	"tallerpro.mx/shop/middleware"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/pkg/catalog"
	"tallerpro.mx/shop/pkg/chatbot"
	"tallerpro.mx/shop/pkg/ratelimit"
	"tallerpro.mx/shop/pkg/tracking"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	DB     *gorm.DB
	Log    logrus.FieldLogger
	Clock  clock.Clock
	Tokens *auth.TokenManager

	Auth  *auth.Service
	Users *auth.Users
	Roles *auth.Roles

	Tracking  *tracking.Service
	Clients   *catalog.Clients
	Vehicles  *catalog.Vehicles
	Employees *catalog.Employees
	Services  *catalog.Services
	Inventory *catalog.Inventory
	Quotes    *catalog.Quotes

	Bot         *chatbot.Bot
	ChatLimiter ratelimit.Limiter
	Branches    []config.Branch

	// UploadDir is served under /uploads/ when attachments are kept on disk.
	UploadDir      string
	CORSOrigins    []string
	// TrustedProxies may set X-Forwarded-For; see middleware.RealIP.
	TrustedProxies []*net.IPNet
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(d Deps) http.Handler {
	r := mux.NewRouter()
	log := d.Log

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	public := handlers.NewPublicHandler(d.DB, d.Tracking, d.Services, d.Quotes, d.Bot, d.Branches, log)
	authH := handlers.NewAuthHandler(d.Auth, log)

	r.HandleFunc("/healthz", public.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/auth/login", authH.Login).Methods(http.MethodPost)

	pub := r.PathPrefix("/public").Subrouter()
	pub.HandleFunc("/track/{code}", public.Track).Methods(http.MethodGet)
	pub.HandleFunc("/quotes", public.SubmitQuote).Methods(http.MethodPost)
	pub.HandleFunc("/services", public.Services).Methods(http.MethodGet)
	pub.HandleFunc("/branches", public.Branches).Methods(http.MethodGet)
	pub.Handle("/chat", middleware.RateLimit(d.ChatLimiter, log)(http.HandlerFunc(public.Chat))).Methods(http.MethodPost)

	if d.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))),
		).Methods(http.MethodGet)
	}

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(d.Tokens, log))

	api.HandleFunc("/auth/me", authH.Me).Methods(http.MethodGet)
	api.HandleFunc("/auth/password", authH.ChangePassword).Methods(http.MethodPost)

	registerServiceRoutes(api, handlers.NewServiceHandler(d.Tracking, log), log)

	clients := handlers.NewClientHandler(d.Clients, log)
	registerCRUDRoutes(api, log, "/clients", crudHandlers{
		list: clients.List, create: clients.Create, get: clients.Get, update: clients.Update, delete: clients.Delete,
	}, crudPerms{models.PermClientList, models.PermClientCreate, models.PermClientUpdate, models.PermClientDelete})

	vehicles := handlers.NewVehicleHandler(d.Vehicles, log)
	registerCRUDRoutes(api, log, "/vehicles", crudHandlers{
		list: vehicles.List, create: vehicles.Create, get: vehicles.Get, update: vehicles.Update, delete: vehicles.Delete,
	}, crudPerms{models.PermVehicleList, models.PermVehicleCreate, models.PermVehicleUpdate, models.PermVehicleDelete})

	employees := handlers.NewEmployeeHandler(d.Employees, log)
	registerCRUDRoutes(api, log, "/employees", crudHandlers{
		list: employees.List, create: employees.Create, get: employees.Get, update: employees.Update, delete: employees.Delete,
	}, crudPerms{models.PermEmployeeList, models.PermEmployeeCreate, models.PermEmployeeUpdate, models.PermEmployeeDelete})

	catalogH := handlers.NewCatalogHandler(d.Services, log)
	registerCRUDRoutes(api, log, "/catalog", crudHandlers{
		list: catalogH.List, create: catalogH.Create, get: catalogH.Get, update: catalogH.Update, delete: catalogH.Delete,
	}, crudPerms{models.PermCatalogList, models.PermCatalogCreate, models.PermCatalogUpdate, models.PermCatalogDelete})

	inventory := handlers.NewInventoryHandler(d.Inventory, log)
	api.Handle("/inventory/export", middleware.RequirePermission(log, models.PermInventoryExport)(
		http.HandlerFunc(inventory.Export))).Methods(http.MethodGet)
	api.Handle("/inventory/{id}/adjust", middleware.RequirePermission(log, models.PermInventoryUpdate)(
		http.HandlerFunc(inventory.Adjust))).Methods(http.MethodPost)
	registerCRUDRoutes(api, log, "/inventory", crudHandlers{
		list: inventory.List, create: inventory.Create, get: inventory.Get, update: inventory.Update, delete: inventory.Delete,
	}, crudPerms{models.PermInventoryList, models.PermInventoryCreate, models.PermInventoryUpdate, models.PermInventoryDelete})

	quotes := handlers.NewQuoteHandler(d.Quotes, log)
	registerCRUDRoutes(api, log, "/quotes", crudHandlers{
		list: quotes.List, get: quotes.Get, update: quotes.Update, delete: quotes.Delete,
	}, crudPerms{list: models.PermQuoteList, update: models.PermQuoteUpdate, delete: models.PermQuoteDelete})

	// =====================================================
	// Admin Routes
	// =====================================================
	users := handlers.NewUserHandler(d.Users, log)
	api.Handle("/users/{id}/unlock", middleware.RequirePermission(log, models.PermUserUpdate)(
		http.HandlerFunc(users.Unlock))).Methods(http.MethodPost)
	registerCRUDRoutes(api, log, "/users", crudHandlers{
		list: users.List, create: users.Create, get: users.Get, update: users.Update, delete: users.Delete,
	}, crudPerms{models.PermUserList, models.PermUserCreate, models.PermUserUpdate, models.PermUserDelete})

	roles := handlers.NewRoleHandler(d.Roles, log)
	api.Handle("/permissions", middleware.RequirePermission(log, models.PermRoleList)(
		http.HandlerFunc(roles.Permissions))).Methods(http.MethodGet)
	registerCRUDRoutes(api, log, "/roles", crudHandlers{
		list: roles.List, create: roles.Create, get: roles.Get, update: roles.Update, delete: roles.Delete,
	}, crudPerms{models.PermRoleList, models.PermRoleCreate, models.PermRoleUpdate, models.PermRoleDelete})

	var h http.Handler = r
	h = middleware.CORS(d.CORSOrigins)(h)
	h = middleware.Recover(log)(h)
	h = middleware.RequestLogger(log, d.Clock)(h)
	h = middleware.RealIP(d.TrustedProxies)(h)
	return h
}

func registerServiceRoutes(api *mux.Router, h *handlers.ServiceHandler, log logrus.FieldLogger) {
	perm := func(p string, fn http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(log, p)(fn)
	}

	api.Handle("/services/completed/export", perm(models.PermCompletedExport, h.ExportCompleted)).Methods(http.MethodGet)
	api.Handle("/services/completed", perm(models.PermCompletedList, h.ListCompleted)).Methods(http.MethodGet)
	api.Handle("/services/completed/{id}", perm(models.PermCompletedList, h.GetCompleted)).Methods(http.MethodGet)
	api.Handle("/services/completed/{id}/attachments", perm(models.PermCompletedList, h.Attachments)).Methods(http.MethodGet)

	api.Handle("/services/active", perm(models.PermActiveList, h.List)).Methods(http.MethodGet)
	api.Handle("/services/active", perm(models.PermActiveCreate, h.Create)).Methods(http.MethodPost)
	api.Handle("/services/active/{id}", perm(models.PermActiveList, h.Get)).Methods(http.MethodGet)
	api.Handle("/services/active/{id}", perm(models.PermActiveUpdate, h.UpdateNotes)).Methods(http.MethodPatch)
	api.Handle("/services/active/{id}", perm(models.PermActiveDelete, h.Delete)).Methods(http.MethodDelete)
	api.Handle("/services/active/{id}/stage", perm(models.PermActiveUpdate, h.UpdateStage)).Methods(http.MethodPatch)
	api.Handle("/services/active/{id}/attachments", perm(models.PermActiveUpdate, h.Attach)).Methods(http.MethodPost)
	api.Handle("/services/active/{id}/attachments", perm(models.PermActiveList, h.Attachments)).Methods(http.MethodGet)
}

type crudHandlers struct {
	list   http.HandlerFunc
	create http.HandlerFunc
	get    http.HandlerFunc
	update http.HandlerFunc
	delete http.HandlerFunc
}

type crudPerms struct {
	list   string
	create string
	update string
	delete string
}

// registerCRUDRoutes mounts the standard collection and item routes. A nil
// handler leaves that route out. Updates accept PATCH and PUT.
func registerCRUDRoutes(router *mux.Router, log logrus.FieldLogger, path string, h crudHandlers, p crudPerms) {
	guard := func(perm string, fn http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(log, perm)(fn)
	}
	if h.list != nil {
		router.Handle(path, guard(p.list, h.list)).Methods(http.MethodGet)
	}
	if h.create != nil {
		router.Handle(path, guard(p.create, h.create)).Methods(http.MethodPost)
	}
	if h.get != nil {
		router.Handle(path+"/{id}", guard(p.list, h.get)).Methods(http.MethodGet)
	}
	if h.update != nil {
		router.Handle(path+"/{id}", guard(p.update, h.update)).Methods(http.MethodPatch, http.MethodPut)
	}
	if h.delete != nil {
		router.Handle(path+"/{id}", guard(p.delete, h.delete)).Methods(http.MethodDelete)
	}
}
