package domain

import "time"

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a user-facing outcome message. Non-persistent entries are
// destroyed automatically after a fixed delay.
type Notification struct {
	ID         string
	Severity   Severity
	Title      string
	Message    string
	Persistent bool
	CreatedAt  time.Time
}
