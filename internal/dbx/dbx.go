// Package dbx holds record-store helpers shared by the GORM repositories:
// opening the PostgreSQL pool and classifying driver errors into the common
// error taxonomy.
package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgreSQL error codes that signal misconfiguration (missing relation or
// database, rejected credentials, missing privilege) rather than a failed call.
var unavailableCodes = map[string]struct{}{
	"42P01": {}, // undefined_table
	"3D000": {}, // invalid_catalog_name
	"28000": {}, // invalid_authorization_specification
	"28P01": {}, // invalid_password
	"42501": {}, // insufficient_privilege
}

// IsConnectionError reports whether err shows the connection to the record
// store failed, as opposed to the statement being rejected. SQLSTATE class 08
// and the server shutdown codes count, as do network and pool errors.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", "57P02", "57P03": // admin_shutdown, crash_shutdown, cannot_connect_now
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return pgconn.Timeout(err)
}

// Open connects to PostgreSQL through the pgx driver and verifies the
// connection with a ping.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := Ping(ctx, db); err != nil {
		Close(db)
		return nil, err
	}
	return db, nil
}

// Ping checks the underlying pool.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying pool, ignoring errors.
func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Classify translates a raw GORM/pgx error into the taxonomy. msg describes
// the failed operation. gorm.ErrRecordNotFound becomes ErrNotFound with
// notFoundMsg; misconfiguration codes become ErrServiceUnavailable; anything
// else is ErrBackend.
func Classify(err error, msg, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFound(notFoundMsg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := unavailableCodes[pgErr.Code]; ok {
			return common.UnavailableCause("record store resource not found or inaccessible", err)
		}
	}
	return common.Backend(msg, err)
}
