package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuoteStatus string

const (
	QuoteNew       QuoteStatus = "new"
	QuoteContacted QuoteStatus = "contacted"
	QuoteQuoted    QuoteStatus = "quoted"
	QuoteClosed    QuoteStatus = "closed"
)

// QuoteRequest is submitted from the public site and followed up by staff.
type QuoteRequest struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string      `gorm:"size:150;not null" json:"name"`
	Phone      string      `gorm:"size:30" json:"phone"`
	Email      string      `gorm:"size:150" json:"email"`
	Vehicle    string      `gorm:"size:150" json:"vehicle"`
	Service    string      `gorm:"size:150" json:"service"`
	Message    string      `gorm:"type:text" json:"message"`
	Status     QuoteStatus `gorm:"size:20;not null;index" json:"status"`
	AdminNotes string      `gorm:"type:text" json:"admin_notes"`
	RemoteIP   string      `gorm:"size:64" json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (q *QuoteRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QuoteNew
	}
	return
}
