package notification

import "errors"

// ErrSendFailed reports a delivery failure from a notifier.
var ErrSendFailed = errors.New("notification send failed")

// NotificationSystem represents a delivery channel (e.g. email).
type NotificationSystem string

// NoticeType identifies a kind of notification (e.g. "verification_link").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
)

// NoticeTemplate holds the subject and body templates for a notice.
// Text and Html are Go template sources; either may be empty.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries the recipient and the values substituted into
// the registered template.
type NotificationData struct {
	To   string
	Data map[string]string
}

// Notifier delivers a rendered notice over one channel.
type Notifier interface {
	Send(noticeType NoticeType, data NotificationData, template NoticeTemplate) error
}
