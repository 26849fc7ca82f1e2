package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repositories 仓库集合
type Repositories struct {
	db             *gorm.DB
	WagoPart       *WagoPartRepository
	CrossReference *CrossReferenceRepository
	NonWagoProduct *NonWagoProductRepository
	FailureLog     *FailureLogRepository
	Project        *ProjectRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:             db,
		WagoPart:       NewWagoPartRepository(db),
		CrossReference: NewCrossReferenceRepository(db),
		NonWagoProduct: NewNonWagoProductRepository(db),
		FailureLog:     NewFailureLogRepository(db),
		Project:        NewProjectRepository(db),
	}
}

// DB exposes the underlying handle for transactions and health checks.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err is a duplicate-key error from postgres or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wipe deletes every row of model. Global deletes need an explicit session flag in gorm.
func wipe(db *gorm.DB, model interface{}) (int64, error) {
	res := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model)
	return res.RowsAffected, res.Error
}
