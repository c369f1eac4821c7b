package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InventoryCategory string

const (
	CategoryPart      InventoryCategory = "part"
	CategoryFluid     InventoryCategory = "fluid"
	CategoryTire      InventoryCategory = "tire"
	CategoryAccessory InventoryCategory = "accessory"
	CategoryTool      InventoryCategory = "tool"
	CategoryOther     InventoryCategory = "other"
)

type InventoryItem struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string            `gorm:"size:20;uniqueIndex;not null" json:"code"`
	SKU         string            `gorm:"column:sku;size:60;uniqueIndex;not null" json:"sku"`
	Name        string            `gorm:"size:150;not null;index" json:"name"`
	Category    InventoryCategory `gorm:"size:20;not null" json:"category"`
	Quantity    int               `gorm:"not null" json:"quantity"`
	MinQuantity int               `gorm:"not null" json:"min_quantity"`
	UnitCost    float64           `gorm:"type:decimal(12,2)" json:"unit_cost"`
	Location    string            `gorm:"size:60" json:"location"`
	LowStock    bool              `gorm:"-" json:"low_stock"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}

func (i *InventoryItem) AfterFind(tx *gorm.DB) (err error) {
	i.LowStock = i.IsLow()
	return
}

// IsLow reports whether stock is at or below the reorder point.
func (i *InventoryItem) IsLow() bool { return i.Quantity <= i.MinQuantity }
