package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
)

// Status is what a customer sees for a tracking code. It leaves out the
// client's personal data.
type Status struct {
	TrackingCode string               `json:"tracking_code"`
	Status       models.ServiceStatus `json:"status"`
	Stage        models.Stage         `json:"stage"`
	StageLabel   string               `json:"stage_label"`
	Progress     int                  `json:"progress"`
	Plate        string               `json:"plate"`
	Vehicle      string               `json:"vehicle"`
	ReceivedAt   time.Time            `json:"received_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Lookup resolves a code typed by a customer, checking open jobs first and
// then the archive.
func (s *Service) Lookup(ctx context.Context, code string) (*Status, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return nil, errors.NotFoundf("tracking code %q", code)
	}
	db := s.db.WithContext(ctx)

	var job models.ActiveService
	err := db.Preload("Vehicle").Where("tracking_code = ?", code).First(&job).Error
	switch {
	case err == nil:
		st := &Status{
			TrackingCode: job.TrackingCode,
			Status:       job.Status,
			Stage:        job.Stage,
			StageLabel:   job.Stage.Label(),
			Progress:     progress(job.Stage),
			ReceivedAt:   job.ReceivedAt,
			UpdatedAt:    job.UpdatedAt,
		}
		if job.Vehicle != nil {
			st.Plate = job.Vehicle.Plate
			st.Vehicle = strings.TrimSpace(job.Vehicle.Brand + " " + job.Vehicle.Model)
		}
		return st, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Trace(err)
	}

	var rec models.CompletedService
	err = db.Where("tracking_code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("tracking code %q", code)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Status{
		TrackingCode: rec.TrackingCode,
		Status:       models.StatusFinished,
		Stage:        models.StageClosure,
		StageLabel:   models.StageClosure.Label(),
		Progress:     100,
		Plate:        rec.Plate,
		Vehicle:      strings.TrimSpace(rec.Brand + " " + rec.Model),
		ReceivedAt:   rec.ReceivedAt,
		UpdatedAt:    rec.FinishedAt,
	}, nil
}

// progress is the share of stages completed, as a percentage.
func progress(st models.Stage) int {
	i := st.Index()
	if i < 0 {
		return 0
	}
	return i * 100 / (len(models.Stages) - 1)
}
