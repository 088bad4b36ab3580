package domain

// Severity drives how a notification is displayed.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Notification is an entry of the shared activity feed.
type Notification struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Date     string   `json:"date"`
	Read     bool     `json:"read"`
	Severity Severity `json:"type"`
}

// NewNotification holds the caller-supplied fields of a notification.
type NewNotification struct {
	Title    string
	Message  string
	Severity Severity
}
