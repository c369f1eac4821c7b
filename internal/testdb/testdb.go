// Package testdb opens migrated in-memory sqlite databases for tests.
package testdb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/models"
)

// Open returns a fresh migrated database with the permission catalogue and
// default roles seeded. It is closed when the test ends.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	cfg := config.GormConfig(Logger())
	cfg.Logger = gormLogger.Default.LogMode(gormLogger.Silent)

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), cfg)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// every connection would get its own empty memory database
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrations(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	if err := config.Seed(db, nil, Logger()); err != nil {
		tb.Fatalf("seed: %v", err)
	}
	return db
}

// Logger discards everything.
func Logger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func Client(tb testing.TB, db *gorm.DB, code, name string) *models.Client {
	tb.Helper()
	c := &models.Client{Code: code, Name: name, Phone: "555-0100"}
	mustCreate(tb, db, c)
	return c
}

func Vehicle(tb testing.TB, db *gorm.DB, clientID uuid.UUID, plate string) *models.Vehicle {
	tb.Helper()
	v := &models.Vehicle{ClientID: clientID, Plate: plate, Type: models.VehicleCar, Brand: "Nissan", Model: "Versa", Year: 2019}
	mustCreate(tb, db, v)
	return v
}

func CatalogItem(tb testing.TB, db *gorm.DB, code, name string, price float64, active bool) *models.ServiceCatalogItem {
	tb.Helper()
	s := &models.ServiceCatalogItem{Code: code, Name: name, Price: price, EstimatedHours: 1, IsActive: active}
	mustCreate(tb, db, s)
	return s
}

// User creates an active user with the named seeded role. An empty role
// leaves the user without permissions.
func User(tb testing.TB, db *gorm.DB, email, password, role string) *models.User {
	tb.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		tb.Fatalf("hash: %v", err)
	}
	u := &models.User{Name: "Test " + role, Email: email, PasswordHash: string(hash), IsActive: true}
	if role != "" {
		var r models.Role
		if err := db.Where("name = ?", role).First(&r).Error; err != nil {
			tb.Fatalf("role %s: %v", role, err)
		}
		u.RoleID = &r.ID
	}
	mustCreate(tb, db, u)
	return u
}

func mustCreate(tb testing.TB, db *gorm.DB, v interface{}) {
	tb.Helper()
	if err := db.Create(v).Error; err != nil {
		tb.Fatalf("create %T: %v", v, err)
	}
}
