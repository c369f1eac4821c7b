package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/middleware"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/utils"
)

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type meResp struct {
	User        *models.User `json:"user"`
	Permissions []string     `json:"permissions"`
}

type AuthHandler struct {
	svc *auth.Service
	log logrus.FieldLogger
}

func NewAuthHandler(svc *auth.Service, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := utils.Validate(req); err != nil {
		writeError(w, h.log, err)
		return
	}
	session, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.WithFields(logrus.Fields{"email": req.Email, "ip": middleware.ClientIP(r)}).
			WithError(err).Info("login rejected")
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, session)
}

// Me returns the caller with permissions as currently stored.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, meResp{User: u, Permissions: u.Permissions()})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordChange
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := utils.Validate(req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Current == req.New {
		writeError(w, h.log, apperr.Invalid("new_password", "must differ from the current password"))
		return
	}
	if err := h.svc.ChangePassword(r.Context(), middleware.GetUserID(r), req.Current, req.New); err != nil {
		writeError(w, h.log, err)
		return
	}
	noContent(w)
}
