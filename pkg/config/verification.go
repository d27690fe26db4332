package config

import (
	"fmt"
	"time"
)

// Verification methods.
const (
	MethodLink = "link"
	MethodOTP  = "otp"
)

// VerificationConfig is the single source of truth for verification policy.
// Defaults are declared here once; nothing downstream invents its own.
type VerificationConfig struct {
	Method           string `env:"OPTIN_METHOD" env-default:"link"`
	LinkExpiryHours  int    `env:"OPTIN_LINK_EXPIRY_HOURS" env-default:"24"`
	OTPLength        int    `env:"OPTIN_OTP_LENGTH" env-default:"6"`
	OTPCharset       string `env:"OPTIN_OTP_CHARSET" env-default:"alphanumeric"`
	OTPExpiryMinutes int    `env:"OPTIN_OTP_EXPIRY_MINUTES" env-default:"5"`
	OTPMaxAttempts   int    `env:"OPTIN_OTP_MAX_ATTEMPTS" env-default:"5"`

	// Resend policy: minimum spacing between resends and a cap per UTC
	// clock-hour bucket.
	ResendMinIntervalSeconds int `env:"OPTIN_RESEND_MIN_INTERVAL_SECONDS" env-default:"60"`
	ResendMaxPerHour         int `env:"OPTIN_RESEND_MAX_PER_HOUR" env-default:"5"`

	// DeleteUnverifiedAfterDays controls sweeper account retention.
	// 0 keeps unverified accounts forever.
	DeleteUnverifiedAfterDays int `env:"OPTIN_DELETE_UNVERIFIED_AFTER_DAYS" env-default:"0"`
}

// LinkExpiry returns the link-mode token TTL.
func (c VerificationConfig) LinkExpiry() time.Duration {
	hours := c.LinkExpiryHours
	if hours < 1 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// OTPExpiry returns the OTP-mode token TTL.
func (c VerificationConfig) OTPExpiry() time.Duration {
	minutes := c.OTPExpiryMinutes
	if minutes < 1 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

// ResendMinInterval returns the minimum spacing between resends.
func (c VerificationConfig) ResendMinInterval() time.Duration {
	return time.Duration(c.ResendMinIntervalSeconds) * time.Second
}

// Validate rejects settings the verification engine cannot honor.
func (c VerificationConfig) Validate() error {
	if c.Method != MethodLink && c.Method != MethodOTP {
		return fmt.Errorf("verification method must be %q or %q, got %q", MethodLink, MethodOTP, c.Method)
	}
	if c.OTPLength != 4 && c.OTPLength != 6 {
		return fmt.Errorf("otp length must be 4 or 6, got %d", c.OTPLength)
	}
	if c.OTPCharset != "numeric" && c.OTPCharset != "alphanumeric" {
		return fmt.Errorf("otp charset must be numeric or alphanumeric, got %q", c.OTPCharset)
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("otp max attempts must be positive, got %d", c.OTPMaxAttempts)
	}
	return nil
}

// SiteConfig carries the values substituted into email templates and links.
type SiteConfig struct {
	BaseURL  string `env:"OPTIN_BASE_URL" env-default:"http://localhost:4000"`
	SiteName string `env:"OPTIN_SITE_NAME" env-default:"Example Store"`
}
