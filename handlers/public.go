package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/middleware"
	"tallerpro.mx/shop/pkg/catalog"
	"tallerpro.mx/shop/pkg/chatbot"
	"tallerpro.mx/shop/pkg/tracking"
	"tallerpro.mx/shop/utils"
)

type chatReq struct {
	Message string `json:"message"`
}

type publicService struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Price          float64 `json:"price"`
	EstimatedHours float64 `json:"estimated_hours"`
}

type quoteAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PublicHandler serves the unauthenticated endpoints used by the website.
type PublicHandler struct {
	db       *gorm.DB
	tracking *tracking.Service
	services *catalog.Services
	quotes   *catalog.Quotes
	bot      *chatbot.Bot
	branches *geojson.FeatureCollection
	log      logrus.FieldLogger
}

func NewPublicHandler(db *gorm.DB, tr *tracking.Service, services *catalog.Services, quotes *catalog.Quotes,
	bot *chatbot.Bot, branches []config.Branch, log logrus.FieldLogger) *PublicHandler {
	return &PublicHandler{
		db:       db,
		tracking: tr,
		services: services,
		quotes:   quotes,
		bot:      bot,
		branches: branchFeatures(branches),
		log:      log,
	}
}

func branchFeatures(branches []config.Branch) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range branches {
		f := geojson.NewFeature(b.Location)
		f.Properties["name"] = b.Name
		fc.Append(f)
	}
	return fc
}

// Track answers a customer's tracking code lookup.
func (h *PublicHandler) Track(w http.ResponseWriter, r *http.Request) {
	st, err := h.tracking.Lookup(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (h *PublicHandler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	var in catalog.NewQuote
	if err := decode(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	q, err := h.quotes.Submit(r.Context(), in, middleware.ClientIP(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{"quote": q.ID, "service": q.Service}).Info("quote request received")
	utils.WriteJSON(w, http.StatusCreated, quoteAck{ID: q.ID.String(), Status: string(q.Status)})
}

func (h *PublicHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	ans, err := h.bot.Reply(r.Context(), req.Message)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ans)
}

// Services lists the active catalogue without internal fields.
func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	items, err := h.services.ListActive(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]publicService, len(items))
	for i, it := range items {
		out[i] = publicService{Name: it.Name, Description: it.Description, Price: it.Price, EstimatedHours: it.EstimatedHours}
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

// Branches returns the shop locations as a GeoJSON FeatureCollection.
func (h *PublicHandler) Branches(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("Content-Type", "application/geo+json")
	body, err := h.branches.MarshalJSON()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	_, _ = w.Write(body)
}

// Health reports whether the database answers.
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.WithError(err).Error("health check failed")
		utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
