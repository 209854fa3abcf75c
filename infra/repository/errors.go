package repository

import (
	"errors"
	"strings"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the ledger cares about.
const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	pgDeadlockDetected  = "40P01"
	sqliteBusyMessage   = "database is locked"
	sqliteUniqueMessage = "UNIQUE constraint failed"
)

// MapGormErrorToDomain converts GORM and driver errors to domain errors.
// Unique violations become duplicate, which lets each repository report the
// entity that clashed. Errors with no mapping are returned unchanged.
func MapGormErrorToDomain(err error, duplicate error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return duplicate
		case pgLockNotAvailable, pgDeadlockDetected:
			return domain.ErrLockTimeout
		}
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return duplicate
	case strings.Contains(err.Error(), sqliteUniqueMessage):
		return duplicate
	case strings.Contains(err.Error(), sqliteBusyMessage):
		return domain.ErrLockTimeout
	}
	return err
}

// WrapError runs a GORM operation and maps its error.
//
// Usage:
//
//	err := WrapError(domain.ErrCardAlreadyExists, func() error {
//	    return r.db.WithContext(ctx).Create(&m).Error
//	})
func WrapError(duplicate error, op func() error) error {
	return MapGormErrorToDomain(op(), duplicate)
}
