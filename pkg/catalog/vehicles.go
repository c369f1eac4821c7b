package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

type NewVehicle struct {
	ClientCode string             `json:"client_code" validate:"required,max=20"`
	Plate      string             `json:"plate" validate:"required,min=3,max=15"`
	Type       models.VehicleType `json:"type" validate:"required,oneof=car motorcycle"`
	Brand      string             `json:"brand" validate:"required,max=60"`
	Model      string             `json:"model" validate:"required,max=60"`
	Year       int                `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Color      string             `json:"color" validate:"max=30"`
	VIN        string             `json:"vin" validate:"max=30"`
	Mileage    int                `json:"mileage" validate:"gte=0"`
}

type VehiclePatch struct {
	ClientCode *string             `json:"client_code" validate:"omitempty,max=20"`
	Plate      *string             `json:"plate" validate:"omitempty,min=3,max=15"`
	Type       *models.VehicleType `json:"type" validate:"omitempty,oneof=car motorcycle"`
	Brand      *string             `json:"brand" validate:"omitempty,max=60"`
	Model      *string             `json:"model" validate:"omitempty,max=60"`
	Year       *int                `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Color      *string             `json:"color" validate:"omitempty,max=30"`
	VIN        *string             `json:"vin" validate:"omitempty,max=30"`
	Mileage    *int                `json:"mileage" validate:"omitempty,gte=0"`
}

type VehicleFilter struct {
	Query      string
	ClientCode string
	Type       models.VehicleType
	Page       utils.Page
}

type Vehicles struct {
	db *gorm.DB
}

func NewVehicles(db *gorm.DB) *Vehicles { return &Vehicles{db: db} }

func (s *Vehicles) List(ctx context.Context, f VehicleFilter) ([]models.Vehicle, int64, error) {
	scopes := []func(*gorm.DB) *gorm.DB{
		utils.Search(f.Query, "vehicles.plate", "vehicles.brand", "vehicles.model", "vehicles.vin"),
	}
	if f.ClientCode != "" {
		code := strings.ToUpper(strings.TrimSpace(f.ClientCode))
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Joins("JOIN clients ON clients.id = vehicles.client_id").Where("clients.code = ?", code)
		})
	}
	if f.Type != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("vehicles.type = ?", f.Type) })
	}
	return list[models.Vehicle](ctx, s.db, f.Page, "vehicles.plate", scopes...)
}

func (s *Vehicles) Get(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "vehicle")
	}
	return &v, nil
}

func (s *Vehicles) Create(ctx context.Context, in NewVehicle) (*models.Vehicle, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	clientID, err := clientIDByCode(db, in.ClientCode)
	if err != nil {
		return nil, err
	}
	v := models.Vehicle{
		ClientID: clientID,
		Plate:    models.NormalizePlate(in.Plate),
		Type:     in.Type,
		Brand:    strings.TrimSpace(in.Brand),
		Model:    strings.TrimSpace(in.Model),
		Year:     in.Year,
		Color:    strings.TrimSpace(in.Color),
		VIN:      strings.ToUpper(strings.TrimSpace(in.VIN)),
		Mileage:  in.Mileage,
	}
	if err := db.Create(&v).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("vehicle with plate %s", v.Plate))
	}
	return &v, nil
}

func (s *Vehicles) Update(ctx context.Context, id uuid.UUID, in VehiclePatch) (*models.Vehicle, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	p := patch{}
	if in.ClientCode != nil {
		clientID, err := clientIDByCode(db, *in.ClientCode)
		if err != nil {
			return nil, err
		}
		p["client_id"] = clientID
	}
	what := "vehicle"
	if in.Plate != nil {
		plate := models.NormalizePlate(*in.Plate)
		p["plate"] = plate
		what = "vehicle with plate " + plate
	}
	setField(p, "type", in.Type)
	p.str("brand", in.Brand)
	p.str("model", in.Model)
	setField(p, "year", in.Year)
	p.str("color", in.Color)
	if in.VIN != nil {
		p["vin"] = strings.ToUpper(strings.TrimSpace(*in.VIN))
	}
	setField(p, "mileage", in.Mileage)
	if err := update(ctx, s.db, &models.Vehicle{}, id, p, what); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete refuses while the vehicle has an open job.
func (s *Vehicles) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Vehicle
		if err := tx.First(&v, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "vehicle")
		}
		jobs, err := countWhere(tx, &models.ActiveService{}, "vehicle_id = ?", id)
		if err != nil {
			return err
		}
		if jobs > 0 {
			return fmt.Errorf("vehicle %s has %d open service(s): %w", v.Plate, jobs, apperr.InUse)
		}
		return apperr.FromDB(tx.Delete(&v).Error, "vehicle "+v.Plate)
	})
}

func clientIDByCode(db *gorm.DB, code string) (uuid.UUID, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var c models.Client
	if err := db.Select("id").Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, apperr.MissingReference("client", code)
		}
		return uuid.Nil, errors.Trace(err)
	}
	return c.ID, nil
}
