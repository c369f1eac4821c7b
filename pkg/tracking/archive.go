package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

// archive replaces job with a CompletedService. It must run inside tx.
func (s *Service) archive(tx *gorm.DB, job *models.ActiveService, actor uuid.UUID, notes *string) (*models.CompletedService, error) {
	var lines []models.ActiveServiceLine
	if err := tx.Where("active_service_id = ?", job.ID).Order("position").Find(&lines).Error; err != nil {
		return nil, errors.Trace(err)
	}
	names, err := lineNames(tx, lines)
	if err != nil {
		return nil, err
	}
	services, err := json.Marshal(names)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var client models.Client
	if err := tx.First(&client, "id = ?", job.ClientID).Error; err != nil {
		return nil, errors.Annotate(err, "load client")
	}
	var vehicle models.Vehicle
	if err := tx.First(&vehicle, "id = ?", job.VehicleID).Error; err != nil {
		return nil, errors.Annotate(err, "load vehicle")
	}

	finishNotes := job.Notes
	if notes != nil {
		finishNotes = strings.TrimSpace(*notes)
	}
	rec := models.CompletedService{
		TrackingCode: job.TrackingCode,
		ClientCode:   client.Code,
		ClientName:   client.Name,
		ClientPhone:  client.Phone,
		Plate:        vehicle.Plate,
		VehicleType:  vehicle.Type,
		Brand:        vehicle.Brand,
		Model:        vehicle.Model,
		Year:         vehicle.Year,
		ReceivedAt:   job.ReceivedAt,
		FinishedAt:   s.now(),
		Services:     services,
		Notes:        finishNotes,
		ClosedBy:     actorRef(actor),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, apperr.FromDB(err, "completed service")
	}
	if err := tx.Where("active_service_id = ?", job.ID).Delete(&models.ActiveServiceLine{}).Error; err != nil {
		return nil, errors.Trace(err)
	}
	res := tx.Delete(&models.ActiveService{}, "id = ?", job.ID)
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, errors.NotFoundf("service")
	}
	return &rec, nil
}

// lineNames resolves catalog names in line order.
func lineNames(tx *gorm.DB, lines []models.ActiveServiceLine) ([]string, error) {
	names := make([]string, 0, len(lines))
	if len(lines) == 0 {
		return names, nil
	}
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ServiceCatalogItemID
	}
	var items []models.ServiceCatalogItem
	if err := tx.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, errors.Trace(err)
	}
	byID := make(map[uuid.UUID]string, len(items))
	for _, it := range items {
		byID[it.ID] = it.Name
	}
	for _, id := range ids {
		name, ok := byID[id]
		if !ok {
			return nil, errors.Errorf("catalog service %s vanished while closing job", id)
		}
		names = append(names, name)
	}
	return names, nil
}

type CompletedFilter struct {
	Query string
	From  *time.Time
	To    *time.Time
	Page  utils.Page
}

func (f CompletedFilter) apply(db *gorm.DB) *gorm.DB {
	db = db.Scopes(utils.Search(f.Query, "tracking_code", "client_name", "client_code", "plate"))
	if f.From != nil {
		db = db.Where("finished_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("finished_at < ?", *f.To)
	}
	return db
}

func (s *Service) ListCompleted(ctx context.Context, f CompletedFilter) ([]models.CompletedService, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CompletedService{}).Scopes(f.apply).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	recs := []models.CompletedService{}
	if err := q.Scopes(utils.Paginate(f.Page)).Order("finished_at DESC").Find(&recs).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	return recs, total, nil
}

func (s *Service) GetCompleted(ctx context.Context, id uuid.UUID) (*models.CompletedService, error) {
	var rec models.CompletedService
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "completed service")
	}
	return &rec, nil
}

var completedColumns = []utils.Column{
	{Label: "Código", Width: 12},
	{Label: "Cliente", Width: 28},
	{Label: "Código cliente", Width: 14},
	{Label: "Teléfono", Width: 14},
	{Label: "Placa", Width: 12},
	{Label: "Vehículo", Width: 24},
	{Label: "Año", Width: 8},
	{Label: "Recibido", Width: 18},
	{Label: "Finalizado", Width: 18},
	{Label: "Servicios", Width: 48},
	{Label: "Notas", Width: 40},
}

// ExportCompleted renders the matching archive as an xlsx workbook. The
// page in f is ignored.
func (s *Service) ExportCompleted(ctx context.Context, f CompletedFilter) (*bytes.Buffer, error) {
	var recs []models.CompletedService
	if err := s.db.WithContext(ctx).Scopes(f.apply).Order("finished_at DESC").Find(&recs).Error; err != nil {
		return nil, errors.Trace(err)
	}
	rows := make([][]interface{}, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []interface{}{
			r.TrackingCode,
			r.ClientName,
			r.ClientCode,
			r.ClientPhone,
			r.Plate,
			strings.TrimSpace(r.Brand + " " + r.Model),
			r.Year,
			r.ReceivedAt.Format("2006-01-02 15:04"),
			r.FinishedAt.Format("2006-01-02 15:04"),
			strings.Join(r.ServiceNames(), ", "),
			r.Notes,
		})
	}
	buf, err := utils.WriteSheet("Servicios concluidos", completedColumns, rows)
	return buf, errors.Annotate(err, "build workbook")
}
