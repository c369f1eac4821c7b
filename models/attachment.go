package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment is a photo or document uploaded for a job. It is keyed by
// tracking code so it stays readable after the job is archived.
type Attachment struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TrackingCode string     `gorm:"size:12;index;not null" json:"tracking_code"`
	FileName     string     `gorm:"size:255;not null" json:"file_name"`
	ObjectKey    string     `gorm:"size:500;not null" json:"-"`
	URL          string     `gorm:"size:1000;not null" json:"url"`
	ContentType  string     `gorm:"size:100" json:"content_type"`
	Size         int64      `json:"size"`
	UploadedBy   *uuid.UUID `gorm:"type:uuid" json:"uploaded_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
