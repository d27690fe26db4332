package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/verification"
)

// Handler exposes the verification endpoints
type Handler struct {
	service *verification.Service
}

// NewHandler creates a new verification API handler
func NewHandler(service *verification.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// Routes mounts the verification endpoints. The redeem endpoints are
// public (the shopper is not signed in yet); resend and status require
// a valid JWT.
func (h *Handler) Routes(jwtAuth *jwtauth.JWTAuth) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/verify", h.Verify)
		r.Post("/verify-otp", h.VerifyOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(jwtAuth))
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Post("/resend", h.Resend)
		r.Get("/status", h.Status)
	})

	return r
}

// Verify handles POST /verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Token == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Token is required"})
		return
	}

	result, err := h.service.VerifyToken(r.Context(), req.Token)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to verify email"

		switch {
		case errors.Is(err, verification.ErrInvalidFormat), errors.Is(err, verification.ErrTokenNotFound):
			// Same message for malformed and unknown tokens
			status = http.StatusNotFound
			message = "Invalid verification token"
		case errors.Is(err, verification.ErrExpired):
			status = http.StatusBadRequest
			message = "Verification link has expired, please request a new one"
		default:
			slog.Error("Failed to verify email", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while verifying email"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	message := "Email verified successfully"
	if result.AlreadyVerified {
		message = "Email is already verified"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyResponse{
		Message:         message,
		Email:           result.Email,
		AlreadyVerified: result.AlreadyVerified,
	})
}

// VerifyOTP handles POST /verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Email == "" || req.OTPCode == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email and code are required"})
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTPCode)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to verify code"
		var attemptsRemaining *int

		var incorrect *verification.IncorrectCodeError
		switch {
		case errors.As(err, &incorrect):
			message = "Incorrect verification code"
			attemptsRemaining = &incorrect.Remaining
		case errors.Is(err, verification.ErrInvalidFormat):
			message = "Incorrect verification code"
		case errors.Is(err, verification.ErrNoPendingVerification):
			status = http.StatusNotFound
			message = "No pending verification for this email"
		case errors.Is(err, verification.ErrExpired):
			message = "Verification code has expired, please request a new one"
		case errors.Is(err, verification.ErrMaxAttempts):
			message = "Too many incorrect attempts, please request a new code"
		default:
			slog.Error("Failed to verify code", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while verifying code"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message, AttemptsRemaining: attemptsRemaining})
		return
	}

	message := "Email verified successfully"
	if result.AlreadyVerified {
		message = "Email is already verified"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyResponse{
		Message:         message,
		Email:           result.Email,
		AlreadyVerified: result.AlreadyVerified,
	})
}

// Resend handles POST /resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerIDFromContext(r)
	if err != nil {
		slog.Error("Failed to get account ID from context", "error", err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	err = h.service.Resend(r.Context(), ownerID)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to send verification email"

		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			status = http.StatusNotFound
			message = "Account not found"
		case errors.Is(err, verification.ErrAlreadyVerified):
			status = http.StatusBadRequest
			message = "Email is already verified"
		case errors.Is(err, verification.ErrRateLimited):
			status = http.StatusTooManyRequests
			message = "Too many verification emails sent. Please try again later"
			w.Header().Set("Retry-After", retryAfterSeconds(h.service.RetryAfter(ownerID)))
		default:
			slog.Error("Failed to resend verification email", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while sending verification email"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ResendResponse{
		Message: "Verification email sent successfully",
	})
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerIDFromContext(r)
	if err != nil {
		slog.Error("Failed to get account ID from context", "error", err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	verified, verifiedAt, err := h.service.Status(r.Context(), ownerID)
	if err != nil {
		status := http.StatusNotFound
		message := "Account not found"

		if !errors.Is(err, account.ErrAccountNotFound) {
			slog.Error("Failed to get verification status", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while retrieving verification status"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	response := StatusResponse{
		EmailVerified: verified,
	}
	if verifiedAt != nil {
		verifiedAtStr := verifiedAt.Format(time.RFC3339)
		response.VerifiedAt = &verifiedAtStr
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// ownerIDFromContext extracts the account ID from the JWT claims set by
// the jwtauth middleware.
func ownerIDFromContext(r *http.Request) (int64, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, err
	}

	// json numbers decode as float64
	if id, ok := claims["account_id"].(float64); ok && id > 0 {
		return int64(id), nil
	}

	return 0, errors.New("account_id not found in JWT claims")
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
