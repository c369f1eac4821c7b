package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

// NewQuote is the public quote form. At least one contact channel is required.
type NewQuote struct {
	Name    string `json:"name" validate:"required,min=2,max=150"`
	Phone   string `json:"phone" validate:"required_without=Email,max=30"`
	Email   string `json:"email" validate:"required_without=Phone,omitempty,email,max=150"`
	Vehicle string `json:"vehicle" validate:"max=150"`
	Service string `json:"service" validate:"max=150"`
	Message string `json:"message" validate:"max=2000"`
}

type QuotePatch struct {
	Status     *models.QuoteStatus `json:"status" validate:"omitempty,oneof=new contacted quoted closed"`
	AdminNotes *string             `json:"admin_notes" validate:"omitempty,max=4000"`
}

type Quotes struct {
	db *gorm.DB
}

func NewQuotes(db *gorm.DB) *Quotes { return &Quotes{db: db} }

// Submit stores a request from the public site.
func (s *Quotes) Submit(ctx context.Context, in NewQuote, remoteIP string) (*models.QuoteRequest, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	q := models.QuoteRequest{
		Name:     strings.TrimSpace(in.Name),
		Phone:    in.Phone,
		Email:    strings.ToLower(in.Email),
		Vehicle:  strings.TrimSpace(in.Vehicle),
		Service:  strings.TrimSpace(in.Service),
		Message:  strings.TrimSpace(in.Message),
		Status:   models.QuoteNew,
		RemoteIP: remoteIP,
	}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, apperr.FromDB(err, "quote request")
	}
	return &q, nil
}

func (s *Quotes) List(ctx context.Context, q string, status models.QuoteStatus, page utils.Page) ([]models.QuoteRequest, int64, error) {
	scopes := []func(*gorm.DB) *gorm.DB{utils.Search(q, "name", "phone", "email", "vehicle", "service")}
	if status != "" {
		switch status {
		case models.QuoteNew, models.QuoteContacted, models.QuoteQuoted, models.QuoteClosed:
		default:
			return nil, 0, apperr.Invalid("status", "unknown status "+string(status))
		}
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("status = ?", status) })
	}
	return list[models.QuoteRequest](ctx, s.db, page, "created_at DESC", scopes...)
}

func (s *Quotes) Get(ctx context.Context, id uuid.UUID) (*models.QuoteRequest, error) {
	var q models.QuoteRequest
	if err := s.db.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "quote request")
	}
	return &q, nil
}

func (s *Quotes) Update(ctx context.Context, id uuid.UUID, in QuotePatch) (*models.QuoteRequest, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	p := patch{}
	setField(p, "status", in.Status)
	p.str("admin_notes", in.AdminNotes)
	if err := update(ctx, s.db, &models.QuoteRequest{}, id, p, "quote request"); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Quotes) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.QuoteRequest{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "quote request")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("quote request")
	}
	return nil
}
