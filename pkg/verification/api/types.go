package api

// VerifyRequest represents the request to redeem a link token
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyOTPRequest represents the request to redeem a one-time code
type VerifyOTPRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otp_code"`
}

// VerifyResponse represents the response after a successful verification
type VerifyResponse struct {
	Message         string `json:"message"`
	Email           string `json:"email"`
	AlreadyVerified bool   `json:"already_verified,omitempty"`
}

// ResendResponse represents the response after a resend request
type ResendResponse struct {
	Message string `json:"message"`
}

// StatusResponse represents an account's verification status
type StatusResponse struct {
	EmailVerified bool    `json:"email_verified"`
	VerifiedAt    *string `json:"verified_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}
