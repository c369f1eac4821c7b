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

type NewService struct {
	Name           string  `json:"name" validate:"required,min=2,max=120"`
	Description    string  `json:"description" validate:"max=2000"`
	Price          float64 `json:"price" validate:"gte=0"`
	EstimatedHours float64 `json:"estimated_hours" validate:"gte=0,lte=1000"`
	IsActive       *bool   `json:"is_active"`
}

type ServicePatch struct {
	Name           *string  `json:"name" validate:"omitempty,min=2,max=120"`
	Description    *string  `json:"description" validate:"omitempty,max=2000"`
	Price          *float64 `json:"price" validate:"omitempty,gte=0"`
	EstimatedHours *float64 `json:"estimated_hours" validate:"omitempty,gte=0,lte=1000"`
	IsActive       *bool    `json:"is_active"`
}

// Services manages the catalogue of priced services.
type Services struct {
	db *gorm.DB
}

func NewServices(db *gorm.DB) *Services { return &Services{db: db} }

func (s *Services) List(ctx context.Context, q string, active *bool, page utils.Page) ([]models.ServiceCatalogItem, int64, error) {
	scopes := []func(*gorm.DB) *gorm.DB{utils.Search(q, "code", "name", "description")}
	if active != nil {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("is_active = ?", *active) })
	}
	return list[models.ServiceCatalogItem](ctx, s.db, page, "code", scopes...)
}

// ListActive returns every active item ordered by name, for the public site.
func (s *Services) ListActive(ctx context.Context) ([]models.ServiceCatalogItem, error) {
	items := []models.ServiceCatalogItem{}
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&items).Error
	return items, errors.Trace(err)
}

func (s *Services) Get(ctx context.Context, id uuid.UUID) (*models.ServiceCatalogItem, error) {
	var item models.ServiceCatalogItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "service")
	}
	return &item, nil
}

func (s *Services) Create(ctx context.Context, in NewService) (*models.ServiceCatalogItem, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	item := models.ServiceCatalogItem{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Price:          in.Price,
		EstimatedHours: in.EstimatedHours,
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := NextCode(tx, ServicePrefix)
		if err != nil {
			return err
		}
		item.Code = code
		return apperr.FromDB(tx.Create(&item).Error, fmt.Sprintf("service %q", item.Name))
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Services) Update(ctx context.Context, id uuid.UUID, in ServicePatch) (*models.ServiceCatalogItem, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	p := patch{}
	what := "service"
	if in.Name != nil {
		p.str("name", in.Name)
		what = fmt.Sprintf("service %q", strings.TrimSpace(*in.Name))
	}
	p.str("description", in.Description)
	setField(p, "price", in.Price)
	setField(p, "estimated_hours", in.EstimatedHours)
	setField(p, "is_active", in.IsActive)
	if err := update(ctx, s.db, &models.ServiceCatalogItem{}, id, p, what); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete refuses while an open job still lists the item. Deactivate it instead.
func (s *Services) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.ServiceCatalogItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "service")
		}
		lines, err := countWhere(tx, &models.ActiveServiceLine{}, "service_catalog_item_id = ?", id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return fmt.Errorf("service %s is used by %d open service(s): %w", item.Code, lines, apperr.InUse)
		}
		return apperr.FromDB(tx.Delete(&item).Error, "service "+item.Code)
	})
}
