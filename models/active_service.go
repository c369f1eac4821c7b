package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveService is a job currently in the shop. It is replaced by a
// CompletedService once it reaches the closing stage.
type ActiveService struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	TrackingCode string              `gorm:"size:12;uniqueIndex;not null" json:"tracking_code"`
	ClientID     uuid.UUID           `gorm:"type:uuid;index;not null" json:"client_id"`
	Client       *Client             `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"client,omitempty"`
	VehicleID    uuid.UUID           `gorm:"type:uuid;index;not null" json:"vehicle_id"`
	Vehicle      *Vehicle            `gorm:"foreignKey:VehicleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"vehicle,omitempty"`
	ReceivedAt   time.Time           `gorm:"not null" json:"received_at"`
	Stage        Stage               `gorm:"size:40;not null;index" json:"stage"`
	Status       ServiceStatus       `gorm:"size:20;not null" json:"status"`
	Notes        string              `gorm:"type:text" json:"notes"`
	CreatedBy    *uuid.UUID          `gorm:"type:uuid" json:"created_by,omitempty"`
	UpdatedBy    *uuid.UUID          `gorm:"type:uuid" json:"updated_by,omitempty"`
	Lines        []ActiveServiceLine `gorm:"foreignKey:ActiveServiceID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func (a *ActiveService) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// StageLabel is the display name of the current stage.
func (a *ActiveService) StageLabel() string { return a.Stage.Label() }

// ActiveServiceLine links a job to one catalog service.
type ActiveServiceLine struct {
	ActiveServiceID      uuid.UUID           `gorm:"type:uuid;primaryKey" json:"-"`
	ServiceCatalogItemID uuid.UUID           `gorm:"type:uuid;primaryKey" json:"service_id"`
	ServiceCatalogItem   *ServiceCatalogItem `gorm:"foreignKey:ServiceCatalogItemID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"service,omitempty"`
	Position             int                 `gorm:"not null" json:"position"`
}
