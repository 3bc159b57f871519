package database

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err is a unique constraint violation on any
// supported driver, translated by gorm or not.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "cannot insert duplicate key") || // sqlserver 2601
		strings.Contains(msg, "violation of unique key constraint") // sqlserver 2627
}

// IsNotFound reports whether err is gorm's record not found
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
