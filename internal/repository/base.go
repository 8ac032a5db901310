// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"foodgram/internal/database"
	"foodgram/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	// sqlite and wrapped driver errors only carry text
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// isCheckConstraintError reports a violated CHECK constraint, such as the
// self-subscription guard on subscriptions.
func isCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCheckViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "check constraint")
}

// mapLookupError turns a missing row into NOT_FOUND and anything else into INTERNAL_ERROR.
func mapLookupError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}
