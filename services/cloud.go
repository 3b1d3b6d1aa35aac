package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"initium-core/models"
	"initium-core/store"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SyncEndpoint    = "/api/v1/sync"
	MigrateEndpoint = "/api/v1/migrate"
)

// PushRequest is the body of a sync or migrate call.
type PushRequest struct {
	Snapshot *store.Snapshot `json:"snapshot"`
	SentAt   time.Time       `json:"sent_at"`
}

// PushResponse is returned by the sync endpoint.
type PushResponse struct {
	Snapshot *store.Snapshot `json:"snapshot"`
}

// MigrateResponse is returned by the migrate endpoint.
type MigrateResponse struct {
	Accepted int `json:"accepted"`
}

// CloudAccountService stores per-account snapshots as opaque records keyed by table and id.
type CloudAccountService struct {
	DB *gorm.DB

	log *zap.Logger
}

func NewCloudAccountService(db *gorm.DB, log *zap.Logger) *CloudAccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CloudAccountService{DB: db, log: log}
}

// MigrateCloud creates the cloud_records table.
func MigrateCloud(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.CloudRecord{}); err != nil {
		return fmt.Errorf("failed to migrate cloud database: %w", err)
	}
	return nil
}

// Push replaces everything stored for the account with snap (last sync wins) and returns the
// stored state.
func (s *CloudAccountService) Push(ctx context.Context, accountID string, snap *store.Snapshot) (*store.Snapshot, error) {
	records, err := flatten(accountID, snap)
	if err != nil {
		return nil, err
	}

	var out *store.Snapshot
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.CloudRecord{}).Error; err != nil {
			return err
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(&records, 200).Error; err != nil {
				return err
			}
		}
		var err error
		out, err = s.load(tx, accountID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("📥 [CLOUD] snapshot replaced", zap.String("account_id", accountID), zap.Int("records", len(records)))
	return out, nil
}

// Migrate upserts snap into the account, de-duplicating by table and record id.
func (s *CloudAccountService) Migrate(ctx context.Context, accountID string, snap *store.Snapshot) (int, error) {
	records, err := flatten(accountID, snap)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "record_table"}, {Name: "record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).CreateInBatches(&records, 200).Error
	if err != nil {
		return 0, storageErr(err)
	}
	s.log.Info("☁️  [CLOUD] migrated", zap.String("account_id", accountID), zap.Int("records", len(records)))
	return len(records), nil
}

// Snapshot returns the account's stored state.
func (s *CloudAccountService) Snapshot(ctx context.Context, accountID string) (*store.Snapshot, error) {
	out, err := s.load(s.DB.WithContext(ctx), accountID)
	return out, storageErr(err)
}

func (s *CloudAccountService) load(tx *gorm.DB, accountID string) (*store.Snapshot, error) {
	var records []models.CloudRecord
	if err := tx.Where("account_id = ?", accountID).Order("record_table, record_id").Find(&records).Error; err != nil {
		return nil, err
	}
	return unflatten(records)
}

// flatten splits a snapshot into one record per row, using the snapshot's JSON form so every
// table is handled the same way.
func flatten(accountID string, snap *store.Snapshot) ([]models.CloudRecord, error) {
	if accountID == "" {
		return nil, validationf("account id is required")
	}
	if snap == nil {
		return nil, validationf("snapshot is required")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var tables map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, err
	}

	var records []models.CloudRecord
	for _, t := range store.SyncTables {
		for i, row := range tables[string(t)] {
			var key struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(row, &key); err != nil {
				return nil, validationf("%s[%d]: %v", t, i, err)
			}
			if key.ID == "" {
				return nil, validationf("%s[%d] has no id", t, i)
			}
			records = append(records, models.CloudRecord{
				AccountID: accountID,
				Table:     string(t),
				RecordID:  key.ID,
				Payload:   datatypes.JSON(row),
			})
		}
	}
	return records, nil
}

func unflatten(records []models.CloudRecord) (*store.Snapshot, error) {
	tables := make(map[string][]json.RawMessage, len(store.SyncTables))
	for _, t := range store.SyncTables {
		tables[string(t)] = []json.RawMessage{}
	}
	for _, r := range records {
		tables[r.Table] = append(tables[r.Table], json.RawMessage(r.Payload))
	}
	raw, err := json.Marshal(tables)
	if err != nil {
		return nil, err
	}
	var snap store.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("stored records do not decode: %w", err)
	}
	return &snap, nil
}
