package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/utils"
)

// The helpers below cover the plain create/get/update/delete endpoints
// shared by the directory resources.

func createWith[In, Out any](w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, fn func(context.Context, In) (Out, error)) {
	var in In
	if err := decode(w, r, &in); err != nil {
		writeError(w, log, err)
		return
	}
	out, err := fn(r.Context(), in)
	if err != nil {
		writeError(w, log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, out)
}

func getWith[Out any](w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, fn func(context.Context, uuid.UUID) (Out, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	out, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func updateWith[In, Out any](w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, fn func(context.Context, uuid.UUID, In) (Out, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	var in In
	if err := decode(w, r, &in); err != nil {
		writeError(w, log, err)
		return
	}
	out, err := fn(r.Context(), id, in)
	if err != nil {
		writeError(w, log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func deleteWith(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, fn func(context.Context, uuid.UUID) error) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeError(w, log, err)
		return
	}
	noContent(w)
}
