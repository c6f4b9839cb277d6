package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/movingops/jobreport-backend/pkg/enums"
)

// NotificationLog records one delivered reminder per business date and kind.
type NotificationLog struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey"`
	Date      string                 `gorm:"type:varchar(10);not null;uniqueIndex:ux_notification_log_date_kind"`
	Kind      enums.NotificationKind `gorm:"type:varchar(32);not null;uniqueIndex:ux_notification_log_date_kind"`
	Recipient string                 `gorm:"type:text;not null"`
	Subject   string                 `gorm:"type:text;not null"`
	JobCount  int                    `gorm:"not null"`
	SentAt    time.Time              `gorm:"not null"`
	CreatedAt time.Time
}

func (NotificationLog) TableName() string { return "notification_log" }

// BeforeCreate assigns the primary key so inserts work without database-side defaults.
func (n *NotificationLog) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
