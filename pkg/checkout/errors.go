package checkout

import "errors"

var (
	// ErrLoginNotVerified is returned when an unverified account tries to sign in
	ErrLoginNotVerified = errors.New("please verify your email address before signing in")

	// ErrVerificationRequired is returned when checkout is blocked pending verification
	ErrVerificationRequired = errors.New("please verify your email address to complete checkout")

	// ErrCheckoutBlocked aborts order finalization for an unverified buyer
	ErrCheckoutBlocked = errors.New("email verification required, please verify your email address before placing an order")

	// ErrAccountExists is returned when a guest elects account creation with a taken email
	ErrAccountExists = errors.New("an account with this email already exists, please sign in")

	// ErrOrderNotFound is returned when an order is not found
	ErrOrderNotFound = errors.New("order not found")

	// ErrNoPendingCheckout is returned when no guest checkout record exists for an email
	ErrNoPendingCheckout = errors.New("no pending checkout verification for this email")

	// ErrInvalidGuestToken is returned when a guest verification token does not match
	ErrInvalidGuestToken = errors.New("invalid verification token")

	// ErrRateLimited is returned when guest verification requests come too fast
	ErrRateLimited = errors.New("too many verification emails sent, please try again later")
)

// VerificationRequiredError blocks a checkout while carrying the identity
// of a freshly provisioned account so the host can sign it in and let it
// watch its own pending state. errors.Is matches ErrVerificationRequired.
type VerificationRequiredError struct {
	AccountID int64
	SignIn    bool
}

func (e *VerificationRequiredError) Error() string {
	return ErrVerificationRequired.Error()
}

func (e *VerificationRequiredError) Is(target error) bool {
	return target == ErrVerificationRequired
}
