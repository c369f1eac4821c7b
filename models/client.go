package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a shop customer. Code is handed out by the server ("CLI-000001").
type Client struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code       string    `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name       string    `gorm:"size:150;not null;index" json:"name"`
	DocumentID string    `gorm:"size:30" json:"document_id"`
	Phone      string    `gorm:"size:30" json:"phone"`
	Email      string    `gorm:"size:150" json:"email"`
	Address    string    `gorm:"size:255" json:"address"`
	Vehicles   []Vehicle `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"vehicles,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// VehicleType is the kind of vehicle the shop accepts.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
)

// Vehicle belongs to exactly one client. Plate is stored normalized.
type Vehicle struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"client_id"`
	Plate     string      `gorm:"size:15;uniqueIndex;not null" json:"plate"`
	Type      VehicleType `gorm:"size:20;not null" json:"type"`
	Brand     string      `gorm:"size:60;not null" json:"brand"`
	Model     string      `gorm:"size:60;not null" json:"model"`
	Year      int         `json:"year"`
	Color     string      `gorm:"size:30" json:"color"`
	VIN       string      `gorm:"size:30" json:"vin"`
	Mileage   int         `json:"mileage"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Plate = NormalizePlate(v.Plate)
	return
}

// NormalizePlate upper-cases a plate and drops spaces and dashes.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(plate)) {
		if r == ' ' || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
