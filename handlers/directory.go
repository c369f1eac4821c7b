package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/catalog"
	"tallerpro.mx/shop/utils"
)

type ClientHandler struct {
	svc *catalog.Clients
	log logrus.FieldLogger
}

func NewClientHandler(svc *catalog.Clients, log logrus.FieldLogger) *ClientHandler {
	return &ClientHandler{svc: svc, log: log}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.svc.List(r.Context(), r.URL.Query().Get("q"), utils.ParsePage(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, items, total)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}

type VehicleHandler struct {
	svc *catalog.Vehicles
	log logrus.FieldLogger
}

func NewVehicleHandler(svc *catalog.Vehicles, log logrus.FieldLogger) *VehicleHandler {
	return &VehicleHandler{svc: svc, log: log}
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, total, err := h.svc.List(r.Context(), catalog.VehicleFilter{
		Query:      q.Get("q"),
		ClientCode: q.Get("client_code"),
		Type:       models.VehicleType(q.Get("type")),
		Page:       utils.ParsePage(r),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, items, total)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}

type EmployeeHandler struct {
	svc *catalog.Employees
	log logrus.FieldLogger
}

func NewEmployeeHandler(svc *catalog.Employees, log logrus.FieldLogger) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, log: log}
}

func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := boolQuery(r, "active")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	items, total, err := h.svc.List(r.Context(), catalog.EmployeeFilter{
		Query:    r.URL.Query().Get("q"),
		Position: models.Position(r.URL.Query().Get("position")),
		Active:   active,
		Page:     utils.ParsePage(r),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, items, total)
}

func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}

// CatalogHandler serves the priced service catalogue.
type CatalogHandler struct {
	svc *catalog.Services
	log logrus.FieldLogger
}

func NewCatalogHandler(svc *catalog.Services, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{svc: svc, log: log}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := boolQuery(r, "active")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	items, total, err := h.svc.List(r.Context(), r.URL.Query().Get("q"), active, utils.ParsePage(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, items, total)
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}

type InventoryHandler struct {
	svc *catalog.Inventory
	log logrus.FieldLogger
}

func NewInventoryHandler(svc *catalog.Inventory, log logrus.FieldLogger) *InventoryHandler {
	return &InventoryHandler{svc: svc, log: log}
}

func (h *InventoryHandler) filter(r *http.Request) (catalog.InventoryFilter, error) {
	low, err := boolQuery(r, "low_stock")
	if err != nil {
		return catalog.InventoryFilter{}, err
	}
	return catalog.InventoryFilter{
		Query:    r.URL.Query().Get("q"),
		Category: models.InventoryCategory(r.URL.Query().Get("category")),
		LowStock: low != nil && *low,
		Page:     utils.ParsePage(r),
	}, nil
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	items, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, items, total)
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

// Adjust applies a signed stock movement.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Adjust)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}

func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	buf, err := h.svc.Export(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeXLSX(w, "inventario.xlsx", buf.Bytes())
}

type QuoteHandler struct {
	svc *catalog.Quotes
	log logrus.FieldLogger
}

func NewQuoteHandler(svc *catalog.Quotes, log logrus.FieldLogger) *QuoteHandler {
	return &QuoteHandler{svc: svc, log: log}
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.svc.List(r.Context(), r.URL.Query().Get("q"),
		models.QuoteStatus(r.URL.Query().Get("status")), utils.ParsePage(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, items, total)
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}
