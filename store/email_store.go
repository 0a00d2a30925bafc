// Package store persists EmailRecords.
package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"graphmail/models"
)

// RecordStore is the sink the record builder writes through.
type RecordStore interface {
	Upsert(ctx context.Context, record *models.EmailRecord) error
}

type EmailStore struct {
	db *gorm.DB
}

func NewEmailStore(db *gorm.DB) *EmailStore {
	return &EmailStore{db: db}
}

// Upsert writes record, replacing every column of an existing row with the same
// db_index. Replays of the same notification converge on one row.
func (s *EmailStore) Upsert(ctx context.Context, record *models.EmailRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "db_index"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

// Find loads a record by its composite key.
func (s *EmailStore) Find(ctx context.Context, dbIndex string) (*models.EmailRecord, error) {
	var record models.EmailRecord
	if err := s.db.WithContext(ctx).First(&record, "db_index = ?", dbIndex).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
