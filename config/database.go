package config

import (
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// OpenDatabase opens the relational store named by url. postgres:// and
// postgresql:// URLs (or key=value DSNs) select Postgres, anything else is
// treated as a SQLite file (sqlite:// prefix optional). gorm warnings go to log.
func OpenDatabase(url string, log *logrus.Logger) (*gorm.DB, string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, "", errors.New("DATABASE_URL is empty")
	}

	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         NewGormLogger(log),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	dialect := DetectDialect(url)
	var (
		db  *gorm.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = gorm.Open(postgres.Open(url), gcfg)
	default:
		db, err = gorm.Open(sqlite.Open(sqliteDSN(url)), gcfg)
	}
	if err != nil {
		return nil, "", err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, "", err
	}

	// Connection Pooling settings
	if dialect == DialectPostgres {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	} else {
		// sqlite serialises writers anyway
		sqlDB.SetMaxOpenConns(1)
	}

	return db, dialect, nil
}

func DetectDialect(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "host="):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

func sqliteDSN(url string) string {
	dsn := strings.TrimPrefix(url, "sqlite://")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=10000&_foreign_keys=on"
}

type gormWriter struct{ entry *logrus.Entry }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.entry.Warnf(format, args...)
}

// NewGormLogger reports slow queries and failed statements through log.
// Lookups that find no row are expected and not logged.
func NewGormLogger(log *logrus.Logger) logger.Interface {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return logger.New(gormWriter{entry: log.WithField("component", "gorm")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
