// Package handlers exposes the shop services over HTTP. Handlers decode and
// validate the request, call one service method and encode the result.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

const (
	maxJSONBody = 1 << 20
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	utils.WriteError(w, log, err)
}

// decode reads a JSON body into v. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err == io.EOF {
			return errors.BadRequestf("request body is empty")
		}
		return errors.BadRequestf("invalid JSON body: %v", err)
	}
	return nil
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Invalid("id", "must be a UUID")
	}
	return id, nil
}

// boolQuery reads an optional true/false query parameter.
func boolQuery(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Invalid(name, "must be true or false")
	}
	return &b, nil
}

// dateQuery reads an optional date or timestamp query parameter. With
// inclusive set, a bare date means the end of that day.
func dateQuery(r *http.Request, name string, inclusive bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	jt, err := models.ParseJSONTime(raw)
	if err != nil {
		return nil, apperr.Invalid(name, "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}
	t := jt.Time()
	if inclusive && len(raw) == len("2006-01-02") {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// writeList answers with a bare JSON array and the unpaged total in
// X-Total-Count.
func writeList[T any](w http.ResponseWriter, items []T, total int64) {
	if items == nil {
		items = []T{}
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	utils.WriteJSON(w, http.StatusOK, items)
}

func writeXLSX(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func noContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }
