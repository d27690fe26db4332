package verification

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when a token or code fails the shape check
	ErrInvalidFormat = errors.New("invalid verification token")

	// ErrTokenNotFound is returned when a verification token is not found
	ErrTokenNotFound = errors.New("verification token not found")

	// ErrNoPendingVerification is returned when no unconsumed code exists for an email
	ErrNoPendingVerification = errors.New("no pending verification for this email")

	// ErrExpired is returned when a verification token or code has expired
	ErrExpired = errors.New("verification token has expired")

	// ErrMaxAttempts is returned when the attempt ceiling for a code has been reached
	ErrMaxAttempts = errors.New("too many incorrect attempts, request a new code")

	// ErrIncorrectCode is returned when a submitted code does not match
	ErrIncorrectCode = errors.New("incorrect verification code")

	// ErrAlreadyVerified is returned when requesting verification for a verified account
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrRateLimited is returned when the resend limiter denies a re-issue
	ErrRateLimited = errors.New("too many verification emails sent, please try again later")
)

// IncorrectCodeError reports a failed code attempt together with the
// number of attempts left before the ceiling locks the code out.
type IncorrectCodeError struct {
	Remaining int
}

func (e *IncorrectCodeError) Error() string {
	if e.Remaining == 1 {
		return "incorrect verification code, 1 attempt remaining"
	}
	return fmt.Sprintf("incorrect verification code, %d attempts remaining", e.Remaining)
}

// Is makes errors.Is(err, ErrIncorrectCode) match.
func (e *IncorrectCodeError) Is(target error) bool {
	return target == ErrIncorrectCode
}
