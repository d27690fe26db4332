package tokengen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
)

// Charset selects the alphabet OTP codes are drawn from.
type Charset string

const (
	CharsetNumeric      Charset = "numeric"
	CharsetAlphanumeric Charset = "alphanumeric"
)

// Alphabets exclude visually ambiguous characters: no 0/O and no 1/I.
// Users transcribe these codes by hand, so the savings are real.
const (
	numericAlphabet      = "23456789"
	alphanumericAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// LinkTokenPattern matches a well-formed link token: 256 bits as lowercase hex.
var LinkTokenPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// OTPPolicy describes how OTP codes are shaped.
type OTPPolicy struct {
	Length  int
	Charset Charset
}

// DefaultOTPPolicy mirrors the central configuration defaults.
func DefaultOTPPolicy() OTPPolicy {
	return OTPPolicy{Length: 6, Charset: CharsetAlphanumeric}
}

// Validate checks the policy against the supported lengths and charsets.
func (p OTPPolicy) Validate() error {
	if p.Length != 4 && p.Length != 6 {
		return fmt.Errorf("otp length must be 4 or 6, got %d", p.Length)
	}
	if p.Charset != CharsetNumeric && p.Charset != CharsetAlphanumeric {
		return fmt.Errorf("unsupported otp charset: %s", p.Charset)
	}
	return nil
}

// MatchesPolicy reports whether a submitted code has the shape this policy
// produces. Codes are canonicalized upper-case before comparison, so the
// check accepts the canonical form only.
func (p OTPPolicy) MatchesPolicy(code string) bool {
	if len(code) != p.Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch p.Charset {
		case CharsetNumeric:
			if c < '0' || c > '9' {
				return false
			}
		default:
			if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
				return false
			}
		}
	}
	return true
}

func (p OTPPolicy) alphabet() string {
	if p.Charset == CharsetNumeric {
		return numericAlphabet
	}
	return alphanumericAlphabet
}

// GenerateLinkToken returns a 256-bit token rendered as 64 lowercase hex
// characters, drawn from a cryptographically secure source.
func GenerateLinkToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateOTP returns a human-enterable code under the given policy.
func GenerateOTP(policy OTPPolicy) (string, error) {
	if err := policy.Validate(); err != nil {
		return "", err
	}

	alphabet := policy.alphabet()
	max := big.NewInt(int64(len(alphabet)))

	code := make([]byte, policy.Length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
