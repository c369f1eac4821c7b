package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/pkg/apperr"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto the API error taxonomy. Server-side failures are
// logged in full and answered with a generic message.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.WithError(err).Error("request failed")
	}
	WriteJSON(w, status, apperr.ToResponse(err))
}
