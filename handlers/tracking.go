package handlers

import (
	"net/http"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/middleware"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/pkg/tracking"
	"tallerpro.mx/shop/utils"
)

type notesReq struct {
	Notes *string `json:"notes" validate:"required,max=2000"`
}

type stageResp struct {
	OK        bool                     `json:"ok"`
	Job       *models.ActiveService    `json:"job,omitempty"`
	Completed *models.CompletedService `json:"completed,omitempty"`
}

// ServiceHandler serves open jobs and the archive of finished ones.
type ServiceHandler struct {
	svc *tracking.Service
	log logrus.FieldLogger
}

func NewServiceHandler(svc *tracking.Service, log logrus.FieldLogger) *ServiceHandler {
	return &ServiceHandler{svc: svc, log: log}
}

func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	f := tracking.Filter{Query: r.URL.Query().Get("q"), Page: utils.ParsePage(r)}
	if raw := r.URL.Query().Get("stage"); raw != "" {
		st, err := tracking.ParseStage(raw)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		f.Stage = st
	}
	jobs, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, jobs, total)
}

func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in tracking.CreateInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	job, err := h.svc.Create(r.Context(), middleware.GetUserID(r), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, job)
}

func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	job, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, job)
}

// UpdateNotes replaces the free-text notes of an open job.
func (h *ServiceHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var req notesReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := utils.Validate(req); err != nil {
		writeError(w, h.log, err)
		return
	}
	job, err := h.svc.UpdateNotes(r.Context(), middleware.GetUserID(r), id, *req.Notes)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, job)
}

// UpdateStage moves a job. Reaching the closing stage archives it and the
// response carries the completed record instead of the job.
func (h *ServiceHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var in tracking.StageUpdate
	if err := decode(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.svc.UpdateStage(r.Context(), middleware.GetUserID(r), id, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stageResp{OK: true, Job: res.Job, Completed: res.Completed})
}

func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	noContent(w)
}

// Attach accepts a multipart upload in the "file" field.
func (h *ServiceHandler) Attach(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	// leave room for the multipart framing around the file
	r.Body = http.MaxBytesReader(w, r.Body, tracking.MaxAttachmentSize+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, h.log, errors.BadRequestf("bad multipart form: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, apperr.Invalid("file", "is required"))
		return
	}
	defer file.Close()

	att, err := h.svc.Attach(r.Context(), middleware.GetUserID(r), id, tracking.Upload{
		FileName: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, att)
}

func (h *ServiceHandler) Attachments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	files, err := h.svc.Attachments(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, files, int64(len(files)))
}

func (h *ServiceHandler) completedFilter(r *http.Request) (tracking.CompletedFilter, error) {
	f := tracking.CompletedFilter{Query: r.URL.Query().Get("q"), Page: utils.ParsePage(r)}
	var err error
	if f.From, err = dateQuery(r, "from", false); err != nil {
		return f, err
	}
	if f.To, err = dateQuery(r, "to", true); err != nil {
		return f, err
	}
	return f, nil
}

func (h *ServiceHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	f, err := h.completedFilter(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	recs, total, err := h.svc.ListCompleted(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, recs, total)
}

func (h *ServiceHandler) GetCompleted(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	rec, err := h.svc.GetCompleted(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

func (h *ServiceHandler) ExportCompleted(w http.ResponseWriter, r *http.Request) {
	f, err := h.completedFilter(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	buf, err := h.svc.ExportCompleted(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	// named after the dates as requested, both already validated
	name := "servicios_concluidos"
	for _, key := range []string{"from", "to"} {
		if t, _ := dateQuery(r, key, false); t != nil {
			name += "_" + t.Format("20060102")
		}
	}
	name += ".xlsx"
	writeXLSX(w, name, buf.Bytes())
}
