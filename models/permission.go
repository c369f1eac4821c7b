package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission is a single "resource:action" grant.
type Permission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"` // e.g. "service.active:create"
	Description string    `gorm:"size:255" json:"description"`
	Resource    string    `gorm:"size:50;not null" json:"resource"` // e.g. "service.active", "client"
	Action      string    `gorm:"size:50;not null" json:"action"`   // e.g. "list", "create"
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// Role is a named collection of permissions assigned to users.
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string       `gorm:"size:255" json:"description"`
	IsActive    bool         `gorm:"not null" json:"is_active"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

func (r *Role) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// HasPermission checks if a role carries the exact permission name.
func (r *Role) HasPermission(permissionName string) bool {
	for _, perm := range r.Permissions {
		if perm.Name == permissionName {
			return true
		}
	}
	return false
}

// Permission names checked by the API.
const (
	PermClientList   = "client:list"
	PermClientCreate = "client:create"
	PermClientUpdate = "client:update"
	PermClientDelete = "client:delete"

	PermVehicleList   = "vehicle:list"
	PermVehicleCreate = "vehicle:create"
	PermVehicleUpdate = "vehicle:update"
	PermVehicleDelete = "vehicle:delete"

	PermEmployeeList   = "employee:list"
	PermEmployeeCreate = "employee:create"
	PermEmployeeUpdate = "employee:update"
	PermEmployeeDelete = "employee:delete"

	PermCatalogList   = "service.catalog:list"
	PermCatalogCreate = "service.catalog:create"
	PermCatalogUpdate = "service.catalog:update"
	PermCatalogDelete = "service.catalog:delete"

	PermActiveList   = "service.active:list"
	PermActiveCreate = "service.active:create"
	PermActiveUpdate = "service.active:update"
	PermActiveDelete = "service.active:delete"

	PermCompletedList   = "service.completed:list"
	PermCompletedExport = "service.completed:export"

	PermInventoryList   = "inventory:list"
	PermInventoryCreate = "inventory:create"
	PermInventoryUpdate = "inventory:update"
	PermInventoryDelete = "inventory:delete"
	PermInventoryExport = "inventory:export"

	PermQuoteList   = "quote:list"
	PermQuoteUpdate = "quote:update"
	PermQuoteDelete = "quote:delete"

	PermUserList   = "user:list"
	PermUserCreate = "user:create"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermRoleList   = "role:list"
	PermRoleCreate = "role:create"
	PermRoleUpdate = "role:update"
	PermRoleDelete = "role:delete"
)
