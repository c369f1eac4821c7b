package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

var positions = map[models.Position]bool{
	models.PositionMechanic:     true,
	models.PositionElectrician:  true,
	models.PositionPainter:      true,
	models.PositionReceptionist: true,
	models.PositionManager:      true,
	models.PositionOther:        true,
}

type NewEmployee struct {
	Name        string           `json:"name" validate:"required,min=2,max=150"`
	Phone       string           `json:"phone" validate:"max=30"`
	Email       string           `json:"email" validate:"omitempty,email,max=150"`
	Position    models.Position  `json:"position" validate:"required,oneof=mechanic electrician painter receptionist manager other"`
	Specialties []string         `json:"specialties" validate:"max=20,dive,required,max=60"`
	HireDate    *models.JSONTime `json:"hire_date"`
	IsActive    *bool            `json:"is_active"`
}

type EmployeePatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=150"`
	Phone       *string          `json:"phone" validate:"omitempty,max=30"`
	Email       *string          `json:"email" validate:"omitempty,email,max=150"`
	Position    *models.Position `json:"position" validate:"omitempty,oneof=mechanic electrician painter receptionist manager other"`
	Specialties *[]string        `json:"specialties" validate:"omitempty,max=20,dive,required,max=60"`
	HireDate    *models.JSONTime `json:"hire_date"`
	IsActive    *bool            `json:"is_active"`
}

type EmployeeFilter struct {
	Query    string
	Position models.Position
	Active   *bool
	Page     utils.Page
}

type Employees struct {
	db *gorm.DB
}

func NewEmployees(db *gorm.DB) *Employees { return &Employees{db: db} }

func (s *Employees) List(ctx context.Context, f EmployeeFilter) ([]models.Employee, int64, error) {
	scopes := []func(*gorm.DB) *gorm.DB{utils.Search(f.Query, "code", "name", "email", "phone")}
	if f.Position != "" {
		if !positions[f.Position] {
			return nil, 0, apperr.Invalid("position", "unknown position "+string(f.Position))
		}
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("position = ?", f.Position) })
	}
	if f.Active != nil {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("is_active = ?", *f.Active) })
	}
	return list[models.Employee](ctx, s.db, f.Page, "code", scopes...)
}

func (s *Employees) Get(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "employee")
	}
	return &e, nil
}

func (s *Employees) Create(ctx context.Context, in NewEmployee) (*models.Employee, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	e := models.Employee{
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Position:    in.Position,
		Specialties: cleanList(in.Specialties),
		HireDate:    in.HireDate,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := NextCode(tx, EmployeePrefix)
		if err != nil {
			return err
		}
		e.Code = code
		return apperr.FromDB(tx.Create(&e).Error, "employee "+code)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Employees) Update(ctx context.Context, id uuid.UUID, in EmployeePatch) (*models.Employee, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	p := patch{}
	p.str("name", in.Name)
	p.str("phone", in.Phone)
	if in.Email != nil {
		p["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	setField(p, "position", in.Position)
	if in.Specialties != nil {
		p["specialties"] = cleanList(*in.Specialties)
	}
	setField(p, "hire_date", in.HireDate)
	setField(p, "is_active", in.IsActive)
	if err := update(ctx, s.db, &models.Employee{}, id, p, "employee"); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Employees) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Employee{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "employee")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("employee")
	}
	return nil
}

// cleanList trims entries and drops blanks and case-insensitive repeats.
func cleanList(in []string) models.Specialties {
	out := models.Specialties{}
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := utils.Fold(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
