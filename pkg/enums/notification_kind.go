package enums

import "fmt"

// NotificationKind maps to notification_log.kind.
type NotificationKind string

const (
	NotificationKindDailyReminder NotificationKind = "daily_reminder"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindDailyReminder,
}

// IsValid checks whether the given kind matches the canonical enum.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw strings into NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
