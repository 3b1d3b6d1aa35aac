package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"initium-core/metrics"
	"initium-core/models"
	"initium-core/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	BackupApp     = "INITIUM"
	BackupVersion = 1
)

type BackupMeta struct {
	App     string    `json:"app"`
	Version int       `json:"version"`
	Date    time.Time `json:"date"`
}

// Backup is the portable export document. Arrays missing from an imported file leave their table
// empty after the import.
type Backup struct {
	Meta      *BackupMeta              `json:"meta"`
	Quests    []models.Quest           `json:"quests"`
	Habits    []models.Habit           `json:"habits"`
	Notes     []models.Note            `json:"notes"`
	Events    []models.Event           `json:"events"`
	Projects  []models.Project         `json:"projects"`
	Training  []models.TrainingSession `json:"training"`
	Analytics []models.AnalyticsDay    `json:"analytics"`
	Feedback  []models.Feedback        `json:"feedback"`
}

func (b *Backup) snapshot() *store.Snapshot {
	return &store.Snapshot{
		Quests:    b.Quests,
		Habits:    b.Habits,
		Notes:     b.Notes,
		Events:    b.Events,
		Projects:  b.Projects,
		Training:  b.Training,
		Analytics: b.Analytics,
		Feedback:  b.Feedback,
	}
}

// FileName is the default download name for a backup taken at t.
func FileName(t time.Time) string {
	return "initium-backup-" + t.Format(time.DateOnly) + ".json"
}

// ObjectStore receives uploaded backups. utils.R2Bucket satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type BackupService struct {
	DB     *gorm.DB
	Clock  clockwork.Clock
	Bucket ObjectStore // nil when uploads are not configured

	log *zap.Logger
}

func NewBackupService(db *gorm.DB, bucket ObjectStore, log *zap.Logger) *BackupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BackupService{DB: db, Clock: clockwork.NewRealClock(), Bucket: bucket, log: log}
}

// Export reads every backed-up table into a Backup.
func (s *BackupService) Export(ctx context.Context) (*Backup, error) {
	snap, err := store.ReadSnapshot(s.DB.WithContext(ctx), store.BackupTables...)
	if err != nil {
		metrics.BackupOperationsTotal.WithLabelValues("export", "failed").Inc()
		return nil, storageErr(err)
	}
	metrics.BackupOperationsTotal.WithLabelValues("export", "ok").Inc()
	return &Backup{
		Meta:      &BackupMeta{App: BackupApp, Version: BackupVersion, Date: s.Clock.Now().UTC()},
		Quests:    snap.Quests,
		Habits:    snap.Habits,
		Notes:     snap.Notes,
		Events:    snap.Events,
		Projects:  snap.Projects,
		Training:  snap.Training,
		Analytics: snap.Analytics,
		Feedback:  snap.Feedback,
	}, nil
}

// WriteTo writes the pretty-printed JSON form of b.
func (b *Backup) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ParseBackup decodes and validates a backup document without touching the store.
func ParseBackup(r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFormatInvalid, err)
	}
	if b.Meta == nil || b.Meta.App != BackupApp {
		return nil, fmt.Errorf("%w: missing %s marker", ErrImportFormatInvalid, BackupApp)
	}
	return &b, nil
}

// Import validates the file first; only a valid file clears the backed-up tables and inserts its
// content, in one transaction.
func (s *BackupService) Import(ctx context.Context, r io.Reader) error {
	b, err := ParseBackup(r)
	if err != nil {
		metrics.BackupOperationsTotal.WithLabelValues("import", "rejected").Inc()
		s.log.Warn("🚫 [BACKUP] import rejected", zap.Error(err))
		return err
	}

	snap := b.snapshot()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return store.ReplaceSnapshot(tx, snap, store.BackupTables...)
	})
	if err != nil {
		metrics.BackupOperationsTotal.WithLabelValues("import", "failed").Inc()
		return fmt.Errorf("%w: %w", ErrStorageTransactionFailed, err)
	}

	metrics.BackupOperationsTotal.WithLabelValues("import", "ok").Inc()
	s.log.Info("📦 [BACKUP] restored", zap.Int("rows", snap.Total()), zap.Time("backup_date", b.Meta.Date))
	return nil
}

// FactoryReset wipes every table, the user aggregate and durable markers included.
func (s *BackupService) FactoryReset(ctx context.Context) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return store.ClearAll(tx)
	})
	if err != nil {
		metrics.BackupOperationsTotal.WithLabelValues("reset", "failed").Inc()
		return fmt.Errorf("%w: %w", ErrStorageTransactionFailed, err)
	}
	metrics.BackupOperationsTotal.WithLabelValues("reset", "ok").Inc()
	s.log.Warn("🧨 [BACKUP] factory reset complete")
	return nil
}

// Upload exports and stores the backup under backups/<userID>/<file name>, returning its URL.
func (s *BackupService) Upload(ctx context.Context, userID string) (string, error) {
	if s.Bucket == nil {
		return "", validationf("backup uploads are not configured")
	}
	b, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return "", err
	}

	if userID == "" {
		userID = models.GuestUserID
	}
	key := fmt.Sprintf("backups/%s/%s", userID, FileName(b.Meta.Date))
	url, err := s.Bucket.Put(ctx, key, buf.Bytes(), "application/json")
	metrics.BackupOperationsTotal.WithLabelValues("upload", metrics.Status(err)).Inc()
	if err != nil {
		return "", err
	}
	s.log.Info("☁️  [BACKUP] uploaded", zap.String("key", key), zap.Int("bytes", buf.Len()))
	return url, nil
}
