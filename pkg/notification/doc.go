// Package notification provides a unified interface for sending notices.
//
// The NotificationManager pairs registered templates (NoticeTemplate, Go
// html/template sources) with delivery channels (Notifier). The service
// ships an SMTP implementation built on wneessen/go-mail and a MockNotifier
// for tests.
//
// # Core Interface
//
//	type Notifier interface {
//	    Send(noticeType NoticeType, data NotificationData, template NoticeTemplate) error
//	}
//
// # Usage
//
//	nm := notification.NewNotificationManager()
//
//	emailNotifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
//	    Host: "smtp.example.com",
//	    Port: 587,
//	    TLS:  true,
//	    From: "noreply@example.com",
//	})
//	if err != nil {
//	    return err
//	}
//	nm.RegisterNotifier(notification.EmailSystem, emailNotifier)
//
//	nm.RegisterNotification("verification_link", notification.EmailSystem, notification.NoticeTemplate{
//	    Subject: "Verify your email",
//	    Html:    verificationLinkHTML,
//	})
//
//	err = nm.Send("verification_link", notification.EmailSystem, notification.NotificationData{
//	    To:   user.Email,
//	    Data: map[string]string{"VerificationURL": url, "ExpiryHours": "24"},
//	})
//
// Template data keys used by this service: UserName, SiteName,
// VerificationURL, OTPCode, ExpiryHours, ExpiryMinutes.
package notification
