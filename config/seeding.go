package config

import (
	"strings"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
)

// Seed creates the permission catalogue, the default roles and, when
// configured, the first administrator. It is safe to run on every start.
func Seed(db *gorm.DB, s *Settings, log logrus.FieldLogger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := SeedPermissions(tx); err != nil {
			return err
		}
		if err := SeedRoles(tx, log); err != nil {
			return err
		}
		if s != nil && s.AdminEmail != "" {
			return SeedAdmin(tx, s.AdminName, s.AdminEmail, s.AdminPassword, log)
		}
		return nil
	})
}

func SeedPermissions(tx *gorm.DB) error {
	for _, p := range PermissionCatalog() {
		if _, err := ensurePermission(tx, p); err != nil {
			return err
		}
	}
	return nil
}

func ensurePermission(tx *gorm.DB, p models.Permission) (models.Permission, error) {
	var out models.Permission
	err := tx.Where(models.Permission{Name: p.Name}).
		Attrs(models.Permission{Resource: p.Resource, Action: p.Action, Description: p.Description}).
		FirstOrCreate(&out).Error
	return out, errors.Annotatef(err, "seed permission %s", p.Name)
}

// PermissionsByName loads (creating when needed) the permission rows for
// names. Wildcard patterns such as "client:*" get their own row.
func PermissionsByName(tx *gorm.DB, names []string) ([]models.Permission, error) {
	out := make([]models.Permission, 0, len(names))
	for _, name := range names {
		resource, action, ok := strings.Cut(name, ":")
		if !ok || resource == "" || action == "" {
			return nil, errors.NotValidf("permission %q", name)
		}
		p, err := ensurePermission(tx, models.Permission{Name: name, Resource: resource, Action: action})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func SeedRoles(tx *gorm.DB, log logrus.FieldLogger) error {
	for _, tmpl := range DefaultRoles {
		var count int64
		if err := tx.Model(&models.Role{}).Where("name = ?", tmpl.Name).Count(&count).Error; err != nil {
			return errors.Trace(err)
		}
		if count > 0 {
			continue
		}
		perms, err := PermissionsByName(tx, tmpl.Permissions)
		if err != nil {
			return err
		}
		role := models.Role{Name: tmpl.Name, Description: tmpl.Description, IsActive: true, Permissions: perms}
		if err := tx.Create(&role).Error; err != nil {
			return errors.Annotatef(err, "seed role %s", tmpl.Name)
		}
		log.WithField("role", tmpl.Name).Info("seeded role")
	}
	return nil
}

func SeedAdmin(tx *gorm.DB, name, email, password string, log logrus.FieldLogger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return errors.Trace(err)
	}
	if count > 0 {
		return nil
	}
	var role models.Role
	if err := tx.Where("name = ?", "admin").First(&role).Error; err != nil {
		return errors.Annotate(err, "admin role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Trace(err)
	}
	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		RoleID:       &role.ID,
		IsActive:     true,
	}
	if err := tx.Create(&user).Error; err != nil {
		return errors.Annotate(err, "seed admin")
	}
	log.WithField("email", email).Info("seeded administrator")
	return nil
}
