package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"tallerpro.mx/shop/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "02062025_create_auth_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Permission{}, &models.Role{}, &models.User{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("role_permissions", &models.User{}, &models.Role{}, &models.Permission{})
			},
		},
		{
			ID: "02062025_create_directory_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.CodeSequence{}, &models.Client{}, &models.Vehicle{},
					&models.Employee{}, &models.ServiceCatalogItem{}, &models.InventoryItem{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.InventoryItem{}, &models.ServiceCatalogItem{},
					&models.Employee{}, &models.Vehicle{}, &models.Client{}, &models.CodeSequence{})
			},
		},
		{
			ID: "09062025_create_tracking_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ActiveService{}, &models.ActiveServiceLine{}, &models.CompletedService{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.CompletedService{}, &models.ActiveServiceLine{}, &models.ActiveService{})
			},
		},
		{
			ID: "23062025_add_quote_requests",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.QuoteRequest{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.QuoteRequest{})
			},
		},
		{
			ID: "14072025_add_login_lockout",
			Migrate: func(tx *gorm.DB) error {
				// failed_attempts, locked_until and last_login_at
				return tx.AutoMigrate(&models.User{})
			},
		},
		{
			ID: "04082025_add_attachments",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Attachment{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Attachment{})
			},
		},
	})
	return m.Migrate()
}
