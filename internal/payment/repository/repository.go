package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	paymentdomain "github.com/keshav-const/promptlens-sub000/internal/payment/domain"
)

type repositoryImpl struct{}

// Provide constructs the processed-event ledger repository.
func Provide() paymentdomain.Repository {
	return repositoryImpl{}
}

func (repositoryImpl) Seen(ctx context.Context, db *gorm.DB, eventKey string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&paymentdomain.ProcessedEvent{}).
		Where("event_key = ?", eventKey).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (repositoryImpl) Record(ctx context.Context, db *gorm.DB, entry *paymentdomain.ProcessedEvent) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO processed_events (id, event_key, event_type, processed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (event_key) DO NOTHING`,
		entry.ID,
		entry.EventKey,
		entry.EventType,
		entry.ProcessedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repositoryImpl) PurgeOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&paymentdomain.ProcessedEvent{})
	return result.RowsAffected, result.Error
}
