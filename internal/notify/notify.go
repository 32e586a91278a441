// Package notify defines the user-facing notification contract. The
// connection core reports terminal failures and server errors through a
// Notifier; the surrounding application decides how to present them.
package notify

import "log"

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier receives user-visible notifications.
type Notifier interface {
	Notify(severity Severity, message string)
}

// LogNotifier writes notifications to the process log. It is the default
// sink for headless use.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(severity Severity, message string) {
	log.Printf("[notify] %s: %s", severity, message)
}

// Func adapts a plain function to the Notifier interface.
type Func func(severity Severity, message string)

// Notify implements Notifier.
func (f Func) Notify(severity Severity, message string) {
	f(severity, message)
}
