package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotRecord is one persisted order book snapshot.
// Bids and Asks hold the JSON encoding of the level arrays.
type SnapshotRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// unique index
	Exchange  string    `gorm:"type:text;not null;index:idx_snapshot_exchange_coin_ts,unique"`
	Coin      string    `gorm:"type:text;not null;index:idx_snapshot_coin;index:idx_snapshot_exchange_coin_ts,unique"`
	Timestamp time.Time `gorm:"not null;index:idx_snapshot_timestamp;index:idx_snapshot_exchange_coin_ts,unique"`

	Bids string `gorm:"type:text;not null"`
	Asks string `gorm:"type:text;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (SnapshotRecord) TableName() string {
	return "orderbook_snapshot"
}

// BeforeCreate assigns a random ID when none is set.
func (r *SnapshotRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
