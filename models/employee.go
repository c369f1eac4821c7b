package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Position string

const (
	PositionMechanic     Position = "mechanic"
	PositionElectrician  Position = "electrician"
	PositionPainter      Position = "painter"
	PositionReceptionist Position = "receptionist"
	PositionManager      Position = "manager"
	PositionOther        Position = "other"
)

// Specialties is stored as a postgres text[]; other dialects keep the
// array literal in a text column.
type Specialties pq.StringArray

func (Specialties) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (s Specialties) Value() (driver.Value, error) {
	if s == nil {
		s = Specialties{}
	}
	return pq.StringArray(s).Value()
}

func (s *Specialties) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*s = Specialties(arr)
	return nil
}

type Employee struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string      `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name        string      `gorm:"size:150;not null;index" json:"name"`
	Phone       string      `gorm:"size:30" json:"phone"`
	Email       string      `gorm:"size:150" json:"email"`
	Position    Position    `gorm:"size:30;not null" json:"position"`
	Specialties Specialties `json:"specialties"`
	HireDate    *JSONTime   `json:"hire_date,omitempty"`
	IsActive    bool        `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (e *Employee) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
