package common

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDb opens the database named by url. A postgres:// (or postgresql://)
// url selects Postgres, anything else is treated as a sqlite file path or DSN.
func ConnectDb(url string) (*gorm.DB, error) {
	if url == "" {
		return nil, errors.New("database url not set")
	}

	db, err := gorm.Open(dialectorFor(url), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s database", driverName(url))
	}

	Log.WithField("driver", driverName(url)).Info("opened database")
	return db, nil
}

func dialectorFor(url string) gorm.Dialector {
	if isPostgres(url) {
		return postgres.Open(url)
	}
	return sqlite.Open(url)
}

func driverName(url string) string {
	if isPostgres(url) {
		return "postgres"
	}
	return "sqlite"
}

func isPostgres(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}
