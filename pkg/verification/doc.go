// Package verification implements the double opt-in engine: issuing
// verification tokens, redeeming them by confirmation link or one-time
// code, and keeping the owning account's verification flags in sync.
//
// # Overview
//
// The verification package provides:
//   - Link token and one-time code issuance with per-method expiry
//   - Link redemption with idempotent already-verified handling
//   - Code redemption with an attempt ceiling and constant-time compare
//   - Resend gated by a per-account rate limiter
//   - Verification status lookup
//   - Expired-token cleanup for the sweeper (redeemed rows are kept)
//   - Repository pattern for PostgreSQL and file storage
//
// # Basic Usage
//
//	import "github.com/commercekit/double-optin/pkg/verification"
//
//	repo := verification.NewRepository(pool)
//	service := verification.NewService(repo, accounts, notificationManager,
//		bus, limiter, verificationConfig, siteConfig)
//
//	// Issue a token during registration; the email goes out automatically
//	vt, err := service.RequestVerification(ctx, acct.ID, acct.Email, acct.Username, verification.TypeAccount)
//
//	// Shopper clicks the link
//	result, err := service.VerifyToken(ctx, token)
//
//	// Or types the emailed code
//	result, err := service.VerifyOTP(ctx, email, code)
//
// # Verification Outcomes
//
// Redeeming an already-redeemed link is a success, not an error: the
// returned Result carries AlreadyVerified. Failures come back as the
// sentinel errors in errors.go, so callers map them with errors.Is. A
// wrong code returns *IncorrectCodeError with the attempts remaining
// before ErrMaxAttempts locks the code out.
//
// On success the service marks the token redeemed, flips the account to
// verified (guests, owner id 0, have no account to flip) and publishes
// events.VerifiedEvent so downstream listeners can release held orders.
package verification
