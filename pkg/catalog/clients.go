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

type NewClient struct {
	Name       string `json:"name" validate:"required,min=2,max=150"`
	DocumentID string `json:"document_id" validate:"max=30"`
	Phone      string `json:"phone" validate:"max=30"`
	Email      string `json:"email" validate:"omitempty,email,max=150"`
	Address    string `json:"address" validate:"max=255"`
}

type ClientPatch struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=150"`
	DocumentID *string `json:"document_id" validate:"omitempty,max=30"`
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
	Email      *string `json:"email" validate:"omitempty,email,max=150"`
	Address    *string `json:"address" validate:"omitempty,max=255"`
}

type Clients struct {
	db *gorm.DB
}

func NewClients(db *gorm.DB) *Clients { return &Clients{db: db} }

func (s *Clients) List(ctx context.Context, q string, page utils.Page) ([]models.Client, int64, error) {
	return list[models.Client](ctx, s.db, page, "code",
		utils.Search(q, "code", "name", "document_id", "phone", "email"))
}

func (s *Clients) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).Preload("Vehicles", func(db *gorm.DB) *gorm.DB { return db.Order("plate") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "client")
	}
	return &c, nil
}

func (s *Clients) Create(ctx context.Context, in NewClient) (*models.Client, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	c := models.Client{
		Name:       strings.TrimSpace(in.Name),
		DocumentID: strings.TrimSpace(in.DocumentID),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Address:    strings.TrimSpace(in.Address),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := NextCode(tx, ClientPrefix)
		if err != nil {
			return err
		}
		c.Code = code
		return apperr.FromDB(tx.Create(&c).Error, "client "+code)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Clients) Update(ctx context.Context, id uuid.UUID, in ClientPatch) (*models.Client, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	p := patch{}
	p.str("name", in.Name)
	p.str("document_id", in.DocumentID)
	p.str("phone", in.Phone)
	p.str("address", in.Address)
	if in.Email != nil {
		p["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if err := update(ctx, s.db, &models.Client{}, id, p, "client"); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete refuses while the client still has vehicles or open jobs.
func (s *Clients) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Client
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "client")
		}
		vehicles, err := countWhere(tx, &models.Vehicle{}, "client_id = ?", id)
		if err != nil {
			return err
		}
		jobs, err := countWhere(tx, &models.ActiveService{}, "client_id = ?", id)
		if err != nil {
			return err
		}
		if vehicles > 0 || jobs > 0 {
			return fmt.Errorf("client %s has %d vehicle(s) and %d open service(s): %w", c.Code, vehicles, jobs, apperr.InUse)
		}
		return apperr.FromDB(tx.Delete(&c).Error, "client "+c.Code)
	})
}

// update applies p to the row with id, reporting NotFound when absent.
func update(ctx context.Context, db *gorm.DB, model interface{}, id uuid.UUID, p patch, what string) error {
	if len(p) == 0 {
		var n int64
		if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
			return errors.Trace(err)
		}
		if n == 0 {
			return errors.NotFoundf("%s", what)
		}
		return nil
	}
	res := db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]interface{}(p))
	if res.Error != nil {
		return apperr.FromDB(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("%s", what)
	}
	return nil
}
