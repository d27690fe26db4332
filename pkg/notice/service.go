package notice

import (
	"embed"
	"log/slog"

	"github.com/commercekit/double-optin/pkg/notification"
)

// Notice types registered by this service.
const (
	VerificationLinkNotice     notification.NoticeType = "verification_link"
	VerificationOTPNotice      notification.NoticeType = "verification_otp"
	CheckoutVerificationNotice notification.NoticeType = "checkout_verification"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NewNotificationManager assembles a notification manager with the
// verification email templates registered against an SMTP notifier.
func NewNotificationManager(smtpConfig notification.SMTPConfig) (*notification.NotificationManager, error) {
	notificationManager := notification.NewNotificationManager()

	emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		return nil, err
	}
	notificationManager.RegisterNotifier(notification.EmailSystem, emailNotifier)

	if err := RegisterTemplates(notificationManager); err != nil {
		return nil, err
	}

	return notificationManager, nil
}

// RegisterTemplates registers the verification notice templates on an
// existing manager. Split out so tests can pair the templates with a mock
// notifier.
func RegisterTemplates(nm *notification.NotificationManager) error {
	err := nm.RegisterNotification(VerificationLinkNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Verify your email address - {{.SiteName}}",
		Html:    loadTemplate("templates/email/verification_link.tmpl"),
	})
	if err != nil {
		slog.Error("failed to register verification link notice", "error", err)
		return err
	}

	err = nm.RegisterNotification(VerificationOTPNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Your verification code - {{.SiteName}}",
		Html:    loadTemplate("templates/email/verification_otp.tmpl"),
	})
	if err != nil {
		slog.Error("failed to register verification otp notice", "error", err)
		return err
	}

	err = nm.RegisterNotification(CheckoutVerificationNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Verify your email to complete your order - {{.SiteName}}",
		Html:    loadTemplate("templates/email/checkout_verification.tmpl"),
	})
	if err != nil {
		slog.Error("failed to register checkout verification notice", "error", err)
		return err
	}

	return nil
}
