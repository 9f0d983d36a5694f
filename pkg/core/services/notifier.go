package services

// Notifier is the notification sink: fire-and-forget email delivery.
// Send failures are logged and collected by callers, never raised into the
// batch transaction.
type Notifier interface {
	SendEmail(to, subject, body string) error
}

// FailedNotification records one email that could not be delivered.
type FailedNotification struct {
	Email string
	Error string
}
