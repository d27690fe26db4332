package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNotice NoticeType = "verification_link"

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager()
	require.NotNil(t, nm)
	assert.NotNil(t, nm.notifiers)
	assert.NotNil(t, nm.notificationRegistry)
}

func TestRegisterNotifier(t *testing.T) {
	nm := NewNotificationManager()
	mock := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mock)
	assert.Same(t, Notifier(mock), nm.notifiers[EmailSystem])

	// Registering again overwrites
	other := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, other)
	assert.Same(t, Notifier(other), nm.notifiers[EmailSystem])
}

func TestRegisterNotification(t *testing.T) {
	nm := NewNotificationManager()

	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:       "Text and Html",
			noticeType: testNotice,
			system:     EmailSystem,
			template:   NoticeTemplate{Subject: "Verify your email", Text: "Visit {{.VerificationURL}}", Html: "<a href=\"{{.VerificationURL}}\">Verify</a>"},
		},
		{
			name:       "Html only",
			noticeType: testNotice,
			system:     EmailSystem,
			template:   NoticeTemplate{Subject: "Verify your email", Html: "<p>{{.OTPCode}}</p>"},
		},
		{
			name:        "Empty notice type",
			noticeType:  "",
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Verify your email"},
			shouldError: true,
		},
		{
			name:        "Empty system",
			noticeType:  testNotice,
			system:      "",
			template:    NoticeTemplate{Subject: "Verify your email"},
			shouldError: true,
		},
		{
			name:        "Empty template",
			noticeType:  testNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			registered, exists := nm.notificationRegistry[tt.noticeType][tt.system]
			require.True(t, exists)
			assert.Equal(t, tt.template, registered)
		})
	}
}

func TestSend(t *testing.T) {
	nm := NewNotificationManager()
	mock := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, mock)

	template := NoticeTemplate{Subject: "Verify your email", Html: "<p>{{.OTPCode}}</p>"}
	require.NoError(t, nm.RegisterNotification(testNotice, EmailSystem, template))

	t.Run("DeliversRegisteredNotice", func(t *testing.T) {
		err := nm.Send(testNotice, EmailSystem, NotificationData{
			To:   "shopper@example.com",
			Data: map[string]string{"OTPCode": "AB23CD"},
		})
		require.NoError(t, err)
		require.NotNil(t, mock.Last())
		assert.Equal(t, "shopper@example.com", mock.Last().To)
		assert.Equal(t, testNotice, mock.SentTypes[len(mock.SentTypes)-1])
	})

	t.Run("UnknownNoticeType", func(t *testing.T) {
		err := nm.Send("unknown_notice", EmailSystem, NotificationData{To: "shopper@example.com"})
		assert.Error(t, err)
	})

	t.Run("MissingNotifier", func(t *testing.T) {
		bare := NewNotificationManager()
		require.NoError(t, bare.RegisterNotification(testNotice, EmailSystem, template))
		err := bare.Send(testNotice, EmailSystem, NotificationData{To: "shopper@example.com"})
		assert.Error(t, err)
	})
}
