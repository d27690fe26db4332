package api

// RequestVerificationRequest represents a guest asking for a verification email
type RequestVerificationRequest struct {
	Email string `json:"email"`
}

// RequestVerificationResponse represents the response after a guest request
type RequestVerificationResponse struct {
	Message string `json:"message"`
}

// VerifyOTPRequest represents a guest redeeming a one-time code
type VerifyOTPRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otp_code"`
}

// VerifyResponse represents the response after a guest verification
type VerifyResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// StatusResponse represents a guest checkout verification status
type StatusResponse struct {
	Verified bool `json:"verified"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
