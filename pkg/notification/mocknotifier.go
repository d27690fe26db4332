package notification

// MockNotifier records notices instead of delivering them. Tests inspect
// SentNotifications and SentTypes to assert on what would have gone out.
type MockNotifier struct {
	SentNotifications []NotificationData
	SentTypes         []NoticeType
	FailSend          bool
}

func (m *MockNotifier) Send(noticeType NoticeType, data NotificationData, template NoticeTemplate) error {
	if m.FailSend {
		return ErrSendFailed
	}
	m.SentNotifications = append(m.SentNotifications, data)
	m.SentTypes = append(m.SentTypes, noticeType)
	return nil
}

// Last returns the most recent recorded notification, or nil.
func (m *MockNotifier) Last() *NotificationData {
	if len(m.SentNotifications) == 0 {
		return nil
	}
	return &m.SentNotifications[len(m.SentNotifications)-1]
}
