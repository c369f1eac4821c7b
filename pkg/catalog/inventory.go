package catalog

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

var categories = map[models.InventoryCategory]bool{
	models.CategoryPart:      true,
	models.CategoryFluid:     true,
	models.CategoryTire:      true,
	models.CategoryAccessory: true,
	models.CategoryTool:      true,
	models.CategoryOther:     true,
}

type NewInventoryItem struct {
	SKU         string                   `json:"sku" validate:"required,max=60"`
	Name        string                   `json:"name" validate:"required,min=2,max=150"`
	Category    models.InventoryCategory `json:"category" validate:"required,oneof=part fluid tire accessory tool other"`
	Quantity    int                      `json:"quantity" validate:"gte=0"`
	MinQuantity int                      `json:"min_quantity" validate:"gte=0"`
	UnitCost    float64                  `json:"unit_cost" validate:"gte=0"`
	Location    string                   `json:"location" validate:"max=60"`
}

// InventoryPatch cannot touch quantity; stock only moves through Adjust.
type InventoryPatch struct {
	SKU         *string                   `json:"sku" validate:"omitempty,max=60"`
	Name        *string                   `json:"name" validate:"omitempty,min=2,max=150"`
	Category    *models.InventoryCategory `json:"category" validate:"omitempty,oneof=part fluid tire accessory tool other"`
	MinQuantity *int                      `json:"min_quantity" validate:"omitempty,gte=0"`
	UnitCost    *float64                  `json:"unit_cost" validate:"omitempty,gte=0"`
	Location    *string                   `json:"location" validate:"omitempty,max=60"`
}

type Adjustment struct {
	Delta  int    `json:"delta" validate:"required,ne=0"`
	Reason string `json:"reason" validate:"max=255"`
}

type InventoryFilter struct {
	Query    string
	Category models.InventoryCategory
	LowStock bool
	Page     utils.Page
}

type Inventory struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewInventory(db *gorm.DB, log logrus.FieldLogger) *Inventory {
	return &Inventory{db: db, log: log}
}

func (s *Inventory) scopes(f InventoryFilter) []func(*gorm.DB) *gorm.DB {
	scopes := []func(*gorm.DB) *gorm.DB{utils.Search(f.Query, "code", "sku", "name", "location")}
	if f.Category != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("category = ?", f.Category) })
	}
	if f.LowStock {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("quantity <= min_quantity") })
	}
	return scopes
}

func (s *Inventory) List(ctx context.Context, f InventoryFilter) ([]models.InventoryItem, int64, error) {
	if f.Category != "" && !categories[f.Category] {
		return nil, 0, apperr.Invalid("category", "unknown category "+string(f.Category))
	}
	return list[models.InventoryItem](ctx, s.db, f.Page, "code", s.scopes(f)...)
}

func (s *Inventory) Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "inventory item")
	}
	return &item, nil
}

func (s *Inventory) Create(ctx context.Context, in NewInventoryItem) (*models.InventoryItem, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	item := models.InventoryItem{
		SKU:         strings.ToUpper(strings.TrimSpace(in.SKU)),
		Name:        strings.TrimSpace(in.Name),
		Category:    in.Category,
		Quantity:    in.Quantity,
		MinQuantity: in.MinQuantity,
		UnitCost:    in.UnitCost,
		Location:    strings.TrimSpace(in.Location),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := NextCode(tx, InventoryPrefix)
		if err != nil {
			return err
		}
		item.Code = code
		return apperr.FromDB(tx.Create(&item).Error, "inventory item with sku "+item.SKU)
	})
	if err != nil {
		return nil, err
	}
	item.LowStock = item.IsLow()
	return &item, nil
}

func (s *Inventory) Update(ctx context.Context, id uuid.UUID, in InventoryPatch) (*models.InventoryItem, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	p := patch{}
	what := "inventory item"
	if in.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*in.SKU))
		p["sku"] = sku
		what = "inventory item with sku " + sku
	}
	p.str("name", in.Name)
	setField(p, "category", in.Category)
	setField(p, "min_quantity", in.MinQuantity)
	setField(p, "unit_cost", in.UnitCost)
	p.str("location", in.Location)
	if err := update(ctx, s.db, &models.InventoryItem{}, id, p, what); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Adjust moves stock by delta under a row lock. The result may not go below zero.
func (s *Inventory) Adjust(ctx context.Context, id uuid.UUID, in Adjustment) (*models.InventoryItem, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "inventory item")
		}
		next := item.Quantity + in.Delta
		if next < 0 {
			return apperr.Invalid("delta", fmt.Sprintf("only %d in stock", item.Quantity))
		}
		if err := tx.Model(&item).Update("quantity", next).Error; err != nil {
			return errors.Annotate(err, "adjust stock")
		}
		item.Quantity = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	item.LowStock = item.IsLow()
	entry := s.log.WithFields(logrus.Fields{
		"item":     item.Code,
		"delta":    in.Delta,
		"quantity": item.Quantity,
		"reason":   in.Reason,
	})
	if item.LowStock {
		entry.Warn("stock at or below minimum")
	} else {
		entry.Info("stock adjusted")
	}
	return &item, nil
}

func (s *Inventory) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.InventoryItem{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "inventory item")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("inventory item")
	}
	return nil
}

var inventoryColumns = []utils.Column{
	{Label: "Código", Width: 12},
	{Label: "SKU", Width: 16},
	{Label: "Nombre", Width: 36},
	{Label: "Categoría", Width: 14},
	{Label: "Existencia", Width: 12},
	{Label: "Mínimo", Width: 10},
	{Label: "Costo unitario", Width: 14},
	{Label: "Ubicación", Width: 16},
	{Label: "Stock bajo", Width: 12},
}

// Export renders the filtered stock as an xlsx workbook.
func (s *Inventory) Export(ctx context.Context, f InventoryFilter) (*bytes.Buffer, error) {
	f.Page = utils.Page{}
	items, _, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(items))
	for _, it := range items {
		low := "No"
		if it.LowStock {
			low = "Sí"
		}
		rows = append(rows, []interface{}{
			it.Code, it.SKU, it.Name, string(it.Category), it.Quantity, it.MinQuantity, it.UnitCost, it.Location, low,
		})
	}
	return utils.WriteSheet("Inventario", inventoryColumns, rows)
}
