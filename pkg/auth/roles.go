package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
	"tallerpro.mx/shop/utils"
)

type NewRole struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions"`
}

type RolePatch struct {
	Name        *string   `json:"name" validate:"omitempty,min=2,max=50"`
	Description *string   `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool     `json:"is_active"`
	Permissions *[]string `json:"permissions"`
}

// Roles administers roles and the permissions they grant.
type Roles struct {
	db *gorm.DB
}

func NewRoles(db *gorm.DB) *Roles { return &Roles{db: db} }

func (s *Roles) List(ctx context.Context) ([]models.Role, error) {
	roles := []models.Role{}
	if err := s.db.WithContext(ctx).Preload("Permissions").Order("name").Find(&roles).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return roles, nil
}

func (s *Roles) Get(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	var r models.Role
	if err := s.db.WithContext(ctx).Preload("Permissions").First(&r, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "role")
	}
	return &r, nil
}

// Permissions lists the permission catalogue.
func (s *Roles) Permissions(ctx context.Context) ([]models.Permission, error) {
	perms := []models.Permission{}
	if err := s.db.WithContext(ctx).Order("resource, action").Find(&perms).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return perms, nil
}

func (s *Roles) Create(ctx context.Context, in NewRole) (*models.Role, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	if err := checkPermissionNames(in.Permissions); err != nil {
		return nil, err
	}
	role := models.Role{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms, err := config.PermissionsByName(tx, in.Permissions)
		if err != nil {
			return err
		}
		role.Permissions = perms
		if err := tx.Create(&role).Error; err != nil {
			return apperr.FromDB(err, fmt.Sprintf("role %s", role.Name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, role.ID)
}

func (s *Roles) Update(ctx context.Context, id uuid.UUID, in RolePatch) (*models.Role, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	if in.Permissions != nil {
		if err := checkPermissionNames(*in.Permissions); err != nil {
			return nil, err
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "role")
		}
		updates := map[string]interface{}{}
		if in.Name != nil {
			updates["name"] = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			updates["description"] = strings.TrimSpace(*in.Description)
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if len(updates) > 0 {
			if err := tx.Model(&role).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, "role")
			}
		}
		if in.Permissions != nil {
			perms, err := config.PermissionsByName(tx, *in.Permissions)
			if err != nil {
				return err
			}
			if err := tx.Model(&role).Association("Permissions").Replace(perms); err != nil {
				return errors.Annotate(err, "replace permissions")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a role nobody is assigned to.
func (s *Roles) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "role")
		}
		var users int64
		if err := tx.Model(&models.User{}).Where("role_id = ?", id).Count(&users).Error; err != nil {
			return errors.Trace(err)
		}
		if users > 0 {
			return fmt.Errorf("role %s is assigned to %d user(s): %w", role.Name, users, apperr.InUse)
		}
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return errors.Trace(err)
		}
		return apperr.FromDB(tx.Delete(&role).Error, "role")
	})
}

// checkPermissionNames accepts catalogue entries and wildcards that cover
// at least one of them.
func checkPermissionNames(names []string) error {
	catalog := config.PermissionCatalog()
	for _, name := range names {
		known := false
		for _, p := range catalog {
			if utils.MatchesPermission(name, p.Name) {
				known = true
				break
			}
		}
		if !known {
			return apperr.Invalid("permissions", "unknown permission "+name)
		}
	}
	return nil
}
