package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"orderbookfeed/internal/orderbook/memorystore"

	"gorm.io/gorm/clause"
)

var (
	ErrInvalidSnapshot   = errors.New("invalid snapshot")
	ErrDuplicateSnapshot = errors.New("duplicate snapshot skipped")
)

// SaveSnapshot inserts record. A record with the same exchange, coin and timestamp
// already present yields ErrDuplicateSnapshot.
func (p *PostgresClient) SaveSnapshot(ctx context.Context, record *SnapshotRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "exchange"},
			{Name: "coin"},
			{Name: "timestamp"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: exchange=%s coin=%s timestamp=%s",
			ErrDuplicateSnapshot,
			record.Exchange,
			record.Coin,
			record.Timestamp.Format(time.RFC3339Nano),
		)
	}

	return nil
}

// RecentSnapshots returns up to limit records, newest timestamp first.
func (p *PostgresClient) RecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	var records []SnapshotRecord
	err := p.DB.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RecentSnapshotsByCoin returns up to limit records for coin, newest timestamp first.
func (p *PostgresClient) RecentSnapshotsByCoin(ctx context.Context, coin string, limit int) ([]SnapshotRecord, error) {
	var records []SnapshotRecord
	err := p.DB.WithContext(ctx).
		Where("coin = ?", coin).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (p *PostgresClient) CountSnapshots(ctx context.Context) (int64, error) {
	var n int64
	if err := p.DB.WithContext(ctx).Model(&SnapshotRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// PruneSnapshots deletes every record older than the keep-th most recent timestamp
// and returns the number of rows removed. Records sharing the cutoff timestamp are kept.
func (p *PostgresClient) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("prune: keep must be positive, got %d", keep)
	}

	var cutoff []SnapshotRecord
	err := p.DB.WithContext(ctx).
		Select("timestamp").
		Order("timestamp DESC").
		Offset(keep - 1).
		Limit(1).
		Find(&cutoff).Error
	if err != nil {
		return 0, fmt.Errorf("prune: find cutoff: %w", err)
	}
	if len(cutoff) == 0 {
		return 0, nil
	}

	tx := p.DB.WithContext(ctx).
		Where("timestamp < ?", cutoff[0].Timestamp).
		Delete(&SnapshotRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("prune: delete: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// ToSnapshotRecord validates s and converts it into a SnapshotRecord for DB insertion.
func ToSnapshotRecord(s memorystore.Snapshot) (*SnapshotRecord, error) {
	if s.Exchange == "" {
		return nil, fmt.Errorf("%w: empty exchange", ErrInvalidSnapshot)
	}
	if s.Symbol == "" {
		return nil, fmt.Errorf("%w: empty coin", ErrInvalidSnapshot)
	}
	if s.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: non-positive timestamp %d", ErrInvalidSnapshot, s.Timestamp)
	}
	if err := validateLevels(s.Bids); err != nil {
		return nil, fmt.Errorf("%w: bids: %v", ErrInvalidSnapshot, err)
	}
	if err := validateLevels(s.Asks); err != nil {
		return nil, fmt.Errorf("%w: asks: %v", ErrInvalidSnapshot, err)
	}

	bids, err := encodeLevels(s.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := encodeLevels(s.Asks)
	if err != nil {
		return nil, err
	}

	return &SnapshotRecord{
		Exchange:  s.Exchange,
		Coin:      s.Symbol,
		Timestamp: time.UnixMilli(s.Timestamp).UTC(),
		Bids:      bids,
		Asks:      asks,
	}, nil
}

// Snapshot converts the record back. Level columns that fail to parse decode as empty.
func (r SnapshotRecord) Snapshot() memorystore.Snapshot {
	return memorystore.Snapshot{
		Exchange:  r.Exchange,
		Symbol:    r.Coin,
		Timestamp: r.Timestamp.UnixMilli(),
		Bids:      decodeLevels(r.Bids),
		Asks:      decodeLevels(r.Asks),
	}
}

func validateLevels(levels []memorystore.PriceLevel) error {
	for i, l := range levels {
		for _, v := range l {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("level %d: invalid value %v", i, v)
			}
		}
	}
	return nil
}

func encodeLevels(levels []memorystore.PriceLevel) (string, error) {
	if levels == nil {
		levels = []memorystore.PriceLevel{}
	}
	b, err := json.Marshal(levels)
	if err != nil {
		return "", fmt.Errorf("encode levels: %w", err)
	}
	return string(b), nil
}

func decodeLevels(raw string) []memorystore.PriceLevel {
	var levels []memorystore.PriceLevel
	if err := json.Unmarshal([]byte(raw), &levels); err != nil || levels == nil {
		return []memorystore.PriceLevel{}
	}
	return levels
}
