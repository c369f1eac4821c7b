package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompletedService is the archived snapshot of a closed job. It keeps
// copies of the client and vehicle data so later edits don't rewrite history.
type CompletedService struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TrackingCode string         `gorm:"size:12;uniqueIndex;not null" json:"tracking_code"`
	ClientCode   string         `gorm:"size:20;index" json:"client_code"`
	ClientName   string         `gorm:"size:150" json:"client_name"`
	ClientPhone  string         `gorm:"size:30" json:"client_phone"`
	Plate        string         `gorm:"size:15;index" json:"plate"`
	VehicleType  VehicleType    `gorm:"size:20" json:"vehicle_type"`
	Brand        string         `gorm:"size:60" json:"brand"`
	Model        string         `gorm:"size:60" json:"model"`
	Year         int            `json:"year"`
	ReceivedAt   time.Time      `json:"received_at"`
	FinishedAt   time.Time      `gorm:"index" json:"finished_at"`
	Services     datatypes.JSON `json:"services"`
	Notes        string         `gorm:"type:text" json:"notes"`
	ClosedBy     *uuid.UUID     `gorm:"type:uuid" json:"closed_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (c *CompletedService) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// ServiceNames decodes the archived service list.
func (c *CompletedService) ServiceNames() []string {
	var names []string
	if len(c.Services) == 0 {
		return names
	}
	if err := json.Unmarshal(c.Services, &names); err != nil {
		return nil
	}
	return names
}
