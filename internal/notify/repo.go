package notify

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/movingops/jobreport-backend/pkg/db/models"
	"github.com/movingops/jobreport-backend/pkg/enums"
)

// Repository persists the reminder dedupe log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, date string, kind enums.NotificationKind) (*models.NotificationLog, error)
	Record(ctx context.Context, entry *models.NotificationLog) error
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notification log repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Find returns the log entry for date and kind, nil when none was recorded.
func (r *repositoryImpl) Find(ctx context.Context, date string, kind enums.NotificationKind) (*models.NotificationLog, error) {
	var entry models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("date = ? AND kind = ?", date, kind).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Record upserts the entry; a forced resend overwrites the previous delivery.
func (r *repositoryImpl) Record(ctx context.Context, entry *models.NotificationLog) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"recipient", "subject", "job_count", "sent_at"}),
		}).
		Create(entry).Error
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).
		Where("sent_at < ?", cutoff).
		Delete(&models.NotificationLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
