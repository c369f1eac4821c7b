package auth

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

type NewUser struct {
	Name     string     `json:"name" validate:"required,min=2,max=100"`
	Email    string     `json:"email" validate:"required,email,max=150"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	RoleID   *uuid.UUID `json:"role_id"`
	IsActive *bool      `json:"is_active"`
}

type UserPatch struct {
	Name     *string    `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string    `json:"email" validate:"omitempty,email,max=150"`
	Password *string    `json:"password" validate:"omitempty,min=8,max=72"`
	RoleID   *uuid.UUID `json:"role_id"`
	IsActive *bool      `json:"is_active"`
}

// Users administers back office accounts.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users { return &Users{db: db} }

func (s *Users) List(ctx context.Context, q string, page utils.Page) ([]models.User, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.User{}).
		Scopes(utils.Search(q, "name", "email")).
		Session(&gorm.Session{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	users := []models.User{}
	if err := base.Preload("Role").Scopes(utils.Paginate(page)).Order("name").Find(&users).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	return users, total, nil
}

func (s *Users) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Role.Permissions").First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &u, nil
}

func (s *Users) Create(ctx context.Context, in NewUser) (*models.User, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := checkRole(db, in.RoleID); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		RoleID:       in.RoleID,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("user with email %s", u.Email))
	}
	return s.Get(ctx, u.ID)
}

func (s *Users) Update(ctx context.Context, id uuid.UUID, in UserPatch) (*models.User, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if in.RoleID != nil {
		if err := checkRole(db, in.RoleID); err != nil {
			return nil, err
		}
		updates["role_id"] = *in.RoleID
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := db.Model(&u).Updates(updates).Error; err != nil {
			return nil, apperr.FromDB(err, "user")
		}
	}
	return s.Get(ctx, id)
}

// Delete removes a user. Nobody can delete their own account.
func (s *Users) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if actor == id {
		return apperr.Invalid("id", "you cannot delete your own account")
	}
	res := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("user")
	}
	return nil
}

// Unlock clears a lockout before its window ends.
func (s *Users) Unlock(ctx context.Context, id uuid.UUID) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"failed_attempts": 0, "locked_until": nil})
	if res.Error != nil {
		return nil, errors.Trace(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.NotFoundf("user")
	}
	return s.Get(ctx, id)
}

func checkRole(db *gorm.DB, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := db.Model(&models.Role{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return errors.Trace(err)
	}
	if n == 0 {
		return apperr.MissingReference("role", id.String())
	}
	return nil
}
