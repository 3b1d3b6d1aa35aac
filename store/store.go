// store/store.go
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"initium-core/models"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrLocked is returned when another process already owns the local data file.
var ErrLocked = errors.New("store: data file is locked by another process")

// DefaultFileName is the SQLite file created inside the data directory.
const DefaultFileName = "initium.db"

type Config struct {
	// DataDir holds the SQLite file and the lock files. Ignored for Postgres except for sync locks.
	DataDir string
	// DSN overrides the default SQLite file. A postgres:// or postgresql:// URL selects Postgres.
	DSN    string
	Logger *zap.Logger
	// Migrate overrides the schema migration; defaults to Migrate.
	Migrate func(*gorm.DB) error
}

// Store owns the gorm handle and, for SQLite, an exclusive lock on the data file.
type Store struct {
	DB      *gorm.DB
	DataDir string

	lock *flock.Flock
	log  *zap.Logger
}

// Open connects, locks the data file when local, and migrates every model.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure data dir %s: %w", cfg.DataDir, err)
	}

	s := &Store{DataDir: cfg.DataDir, log: logger}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var err error
	if isPostgres(cfg.DSN) {
		s.DB, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	} else {
		path := cfg.DSN
		if path == "" {
			path = filepath.Join(cfg.DataDir, DefaultFileName)
		}
		s.lock = flock.New(path + ".lock")
		locked, lerr := s.lock.TryLock()
		if lerr != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", path, lerr)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}

		s.DB, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"), gormCfg)
		if err != nil {
			_ = s.lock.Unlock()
			return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
		}
		sqlDB, err := s.DB.DB()
		if err != nil {
			_ = s.lock.Unlock()
			return nil, err
		}
		// SQLite has a single writer; one connection keeps transactions from tripping SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	migrate := cfg.Migrate
	if migrate == nil {
		migrate = Migrate
	}
	if err := migrate(s.DB); err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Info("🗄️  [STORE] opened", zap.String("data_dir", cfg.DataDir), zap.Bool("postgres", isPostgres(cfg.DSN)))
	return s, nil
}

// Migrate creates or updates every managed table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Habit{},
		&models.Quest{},
		&models.Project{},
		&models.Note{},
		&models.Event{},
		&models.TrainingSession{},
		&models.TrainingTemplate{},
		&models.AnalyticsDay{},
		&models.Setting{},
		&models.Feedback{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the pool and the data file lock.
func (s *Store) Close() error {
	var errs []error
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

// SyncLockPath is the file used to keep two processes from syncing one store at once.
func (s *Store) SyncLockPath() string {
	return filepath.Join(s.DataDir, ".sync.lock")
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
