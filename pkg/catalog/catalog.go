// Package catalog holds the back office directories: clients and their
// vehicles, employees, the service catalogue, inventory and quote requests.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/utils"
)

// Code prefixes and the zero padding used for each.
const (
	ClientPrefix    = "CLI"
	ServicePrefix   = "SRV"
	EmployeePrefix  = "EMP"
	InventoryPrefix = "INV"
)

var codeWidths = map[string]int{
	ClientPrefix:    6,
	ServicePrefix:   4,
	EmployeePrefix:  4,
	InventoryPrefix: 4,
}

// NextCode hands out the next human code for prefix ("CLI-000042"). It must
// run inside the transaction that inserts the record so a rollback returns
// the number.
func NextCode(tx *gorm.DB, prefix string) (string, error) {
	width, ok := codeWidths[prefix]
	if !ok {
		return "", errors.NotValidf("code prefix %q", prefix)
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CodeSequence{Prefix: prefix, Value: 0}).Error; err != nil {
		return "", errors.Annotate(err, "init code sequence")
	}
	var seq models.CodeSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix).First(&seq).Error; err != nil {
		return "", errors.Annotate(err, "lock code sequence")
	}
	seq.Value++
	if err := tx.Model(&models.CodeSequence{}).Where("prefix = ?", prefix).
		Update("value", seq.Value).Error; err != nil {
		return "", errors.Annotate(err, "advance code sequence")
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, seq.Value), nil
}

// list counts and fetches one page of T.
func list[T any](ctx context.Context, db *gorm.DB, page utils.Page, order string, scopes ...func(*gorm.DB) *gorm.DB) ([]T, int64, error) {
	base := db.WithContext(ctx).Model(new(T)).Scopes(scopes...).Session(&gorm.Session{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	out := []T{}
	if err := base.Scopes(utils.Paginate(page)).Order(order).Find(&out).Error; err != nil {
		return nil, 0, errors.Trace(err)
	}
	return out, total, nil
}

func countWhere(tx *gorm.DB, model interface{}, query string, args ...interface{}) (int64, error) {
	var n int64
	err := tx.Model(model).Where(query, args...).Count(&n).Error
	return n, errors.Trace(err)
}

// patch collects the non-nil fields of an update.
type patch map[string]interface{}

func (p patch) str(col string, v *string) {
	if v != nil {
		p[col] = strings.TrimSpace(*v)
	}
}

func setField[T any](p patch, col string, v *T) {
	if v != nil {
		p[col] = *v
	}
}
