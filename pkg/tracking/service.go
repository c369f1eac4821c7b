// Package tracking runs the repair job lifecycle: jobs are opened at
// reception, moved through the workshop stages and archived as completed
// records when they reach the closing stage.
package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/pkg/storage"
	"tallerpro.mx/shop/utils"
)

type Service struct {
	db          *gorm.DB
	codes       CodeGenerator
	clock       clock.Clock
	store       storage.Store
	log         logrus.FieldLogger
	forwardOnly bool
}

type Option func(*Service)

// WithForwardOnly rejects moving a job to an earlier stage.
func WithForwardOnly(on bool) Option { return func(s *Service) { s.forwardOnly = on } }

func WithCodeGenerator(g CodeGenerator) Option { return func(s *Service) { s.codes = g } }

func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

// WithAttachmentStore enables file uploads for jobs.
func WithAttachmentStore(st storage.Store) Option { return func(s *Service) { s.store = st } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:    db,
		codes: randomCodes{},
		clock: clock.WallClock,
		log:   logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("service", "tracking")
	return s
}

type CreateInput struct {
	ClientCode string           `json:"client_code" validate:"required,max=20"`
	Plate      string           `json:"plate" validate:"required,max=15"`
	ReceivedAt *models.JSONTime `json:"received_at"`
	ServiceIDs []uuid.UUID      `json:"service_ids" validate:"dive,required"`
	Notes      string           `json:"notes" validate:"max=2000"`
}

type StageUpdate struct {
	Stage string  `json:"stage"`
	Notes *string `json:"notes"`
}

// StageResult is the outcome of a stage change. Completed is set when the
// job was archived, in which case Job is nil.
type StageResult struct {
	Job       *models.ActiveService    `json:"job,omitempty"`
	Completed *models.CompletedService `json:"completed,omitempty"`
}

type Filter struct {
	Query string
	Stage models.Stage
	Page  utils.Page
}

// Create opens a job for a client's vehicle at the reception stage.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, in CreateInput) (*models.ActiveService, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	receivedAt := s.clock.Now()
	if in.ReceivedAt != nil && !in.ReceivedAt.IsZero() {
		receivedAt = in.ReceivedAt.Time()
	}
	serviceIDs := dedupe(in.ServiceIDs)

	var jobID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clientCode := strings.ToUpper(strings.TrimSpace(in.ClientCode))
		var client models.Client
		if err := tx.Where("code = ?", clientCode).First(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.MissingReference("client", clientCode)
			}
			return errors.Trace(err)
		}

		plate := models.NormalizePlate(in.Plate)
		var vehicle models.Vehicle
		if err := tx.Where("plate = ? AND client_id = ?", plate, client.ID).First(&vehicle).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.MissingReference("vehicle", plate)
			}
			return errors.Trace(err)
		}

		if err := checkServices(tx, serviceIDs); err != nil {
			return err
		}

		code, err := s.newCode(tx)
		if err != nil {
			return err
		}

		job := models.ActiveService{
			TrackingCode: code,
			ClientID:     client.ID,
			VehicleID:    vehicle.ID,
			ReceivedAt:   receivedAt,
			Stage:        models.StageReception,
			Status:       models.StageReception.Status(),
			Notes:        strings.TrimSpace(in.Notes),
			CreatedBy:    actorRef(actor),
			UpdatedBy:    actorRef(actor),
		}
		if err := tx.Omit(clause.Associations).Create(&job).Error; err != nil {
			return apperr.FromDB(err, "service")
		}
		if len(serviceIDs) > 0 {
			lines := make([]models.ActiveServiceLine, len(serviceIDs))
			for i, id := range serviceIDs {
				lines[i] = models.ActiveServiceLine{ActiveServiceID: job.ID, ServiceCatalogItemID: id, Position: i}
			}
			if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
				return errors.Annotate(err, "create service lines")
			}
		}
		jobID = job.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"id": jobID, "actor": actor}).Info("service opened")
	return s.Get(ctx, jobID)
}

func checkServices(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var items []models.ServiceCatalogItem
	if err := tx.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return errors.Trace(err)
	}
	byID := make(map[uuid.UUID]models.ServiceCatalogItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return apperr.MissingReference("service", id.String())
		}
		if !it.IsActive {
			return apperr.Invalid("service_ids", "service "+it.Name+" is not active")
		}
	}
	return nil
}

// newCode draws codes until one is unused by both active and archived jobs.
func (s *Service) newCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", errors.Annotate(err, "generate tracking code")
		}
		taken, err := codeTaken(tx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		s.log.WithField("attempt", i+1).Debug("tracking code collision")
	}
	return "", errors.Errorf("no free tracking code after %d attempts", maxCodeAttempts)
}

func codeTaken(tx *gorm.DB, code string) (bool, error) {
	var n int64
	if err := tx.Model(&models.ActiveService{}).Where("tracking_code = ?", code).Count(&n).Error; err != nil {
		return false, errors.Trace(err)
	}
	if n > 0 {
		return true, nil
	}
	if err := tx.Model(&models.CompletedService{}).Where("tracking_code = ?", code).Count(&n).Error; err != nil {
		return false, errors.Trace(err)
	}
	return n > 0, nil
}

func preloadJob(db *gorm.DB) *gorm.DB {
	return db.Preload("Client").
		Preload("Vehicle").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Lines.ServiceCatalogItem")
}

// List returns jobs newest first, optionally filtered by a substring of the
// tracking code, client, plate or notes.
func (s *Service) List(ctx context.Context, f Filter) ([]models.ActiveService, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ActiveService{}).
		Joins("JOIN clients ON clients.id = active_services.client_id").
		Joins("JOIN vehicles ON vehicles.id = active_services.vehicle_id").
		Scopes(utils.Search(f.Query,
			"active_services.tracking_code", "clients.name", "clients.code", "vehicles.plate", "active_services.notes"))
	if f.Stage != "" {
		q = q.Where("active_services.stage = ?", f.Stage)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	jobs := []models.ActiveService{}
	err := q.Scopes(preloadJob, utils.Paginate(f.Page)).
		Order("active_services.created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	return jobs, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.ActiveService, error) {
	var job models.ActiveService
	if err := s.db.WithContext(ctx).Scopes(preloadJob).First(&job, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "service")
	}
	return &job, nil
}

// UpdateNotes edits a job's notes without touching its stage.
func (s *Service) UpdateNotes(ctx context.Context, actor uuid.UUID, id uuid.UUID, notes string) (*models.ActiveService, error) {
	if len(notes) > 2000 {
		return nil, apperr.Invalid("notes", "must be at most 2000 characters")
	}
	res := s.db.WithContext(ctx).Model(&models.ActiveService{}).Where("id = ?", id).
		Updates(map[string]interface{}{"notes": strings.TrimSpace(notes), "updated_by": actorRef(actor)})
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.NotFoundf("service")
	}
	return s.Get(ctx, id)
}

// UpdateStage moves a job to another stage. Any stage may be chosen unless
// the service runs forward-only. Reaching the closing stage archives the
// job in the same transaction.
func (s *Service) UpdateStage(ctx context.Context, actor uuid.UUID, id uuid.UUID, in StageUpdate) (*StageResult, error) {
	if strings.TrimSpace(in.Stage) == "" {
		return nil, apperr.Invalid("stage", "is required")
	}
	stage, err := ParseStage(in.Stage)
	if err != nil {
		return nil, err
	}
	if in.Notes != nil && len(*in.Notes) > 2000 {
		return nil, apperr.Invalid("notes", "must be at most 2000 characters")
	}

	result := &StageResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.ActiveService
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "service")
		}
		if s.forwardOnly && stage.Index() < job.Stage.Index() {
			return apperr.Invalid("stage", "cannot go back from "+job.Stage.Label())
		}

		if stage.IsFinal() {
			rec, err := s.archive(tx, &job, actor, in.Notes)
			if err != nil {
				return err
			}
			result.Completed = rec
			return nil
		}

		updates := map[string]interface{}{
			"stage":      stage,
			"status":     stage.Status(),
			"updated_by": actorRef(actor),
		}
		if in.Notes != nil {
			updates["notes"] = strings.TrimSpace(*in.Notes)
		}
		return errors.Trace(tx.Model(&job).Updates(updates).Error)
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"id": id, "stage": stage, "actor": actor})
	if result.Completed != nil {
		log.WithField("tracking_code", result.Completed.TrackingCode).Info("service closed")
		return result, nil
	}
	log.Info("service stage changed")
	if result.Job, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete cancels a job. Its lines go first, then the job, then any files.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var removed []models.Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.ActiveService
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "service")
		}
		if err := tx.Where("active_service_id = ?", id).Delete(&models.ActiveServiceLine{}).Error; err != nil {
			return errors.Trace(err)
		}
		res := tx.Delete(&models.ActiveService{}, "id = ?", id)
		if res.Error != nil {
			return apperr.FromDB(res.Error, "service")
		}
		if res.RowsAffected == 0 {
			return errors.NotFoundf("service")
		}
		if err := tx.Where("tracking_code = ?", job.TrackingCode).Find(&removed).Error; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Where("tracking_code = ?", job.TrackingCode).Delete(&models.Attachment{}).Error)
	})
	if err != nil {
		return err
	}
	s.removeObjects(ctx, removed)
	s.log.WithField("id", id).Info("service deleted")
	return nil
}

func (s *Service) removeObjects(ctx context.Context, files []models.Attachment) {
	if s.store == nil {
		return
	}
	for _, f := range files {
		if err := s.store.Delete(ctx, f.ObjectKey); err != nil {
			s.log.WithError(err).WithField("key", f.ObjectKey).Warn("failed to delete attachment object")
		}
	}
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *Service) now() time.Time { return s.clock.Now() }
