package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/middleware"
	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/utils"
)

// UserHandler manages back office accounts.
type UserHandler struct {
	svc *auth.Users
	log logrus.FieldLogger
}

func NewUserHandler(svc *auth.Users, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{svc: svc, log: log}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, total, err := h.svc.List(r.Context(), r.URL.Query().Get("q"), utils.ParsePage(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, users, total)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Unlock)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), middleware.GetUserID(r), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	noContent(w)
}

type RoleHandler struct {
	svc *auth.Roles
	log logrus.FieldLogger
}

func NewRoleHandler(svc *auth.Roles, log logrus.FieldLogger) *RoleHandler {
	return &RoleHandler{svc: svc, log: log}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, roles, int64(len(roles)))
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	getWith(w, r, h.log, h.svc.Get)
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	createWith(w, r, h.log, h.svc.Create)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	updateWith(w, r, h.log, h.svc.Update)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleteWith(w, r, h.log, h.svc.Delete)
}

// Permissions lists the permission catalogue roles are built from.
func (h *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.Permissions(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, perms, int64(len(perms)))
}
