// models/cloud_record.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// CloudRecord is one row of one table of one account, stored by the cloud account service as an
// opaque JSON payload.
type CloudRecord struct {
	AccountID string         `gorm:"primaryKey;type:varchar(128)" json:"account_id"`
	Table     string         `gorm:"primaryKey;column:record_table;type:varchar(64)" json:"table"`
	RecordID  string         `gorm:"primaryKey;type:varchar(128)" json:"record_id"`
	Payload   datatypes.JSON `json:"payload"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
