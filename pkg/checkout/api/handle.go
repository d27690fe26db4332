package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/commercekit/double-optin/pkg/checkout"
	"github.com/commercekit/double-optin/pkg/verification"
)

// Handler exposes the guest checkout verification endpoints
type Handler struct {
	service *checkout.Service
}

// NewHandler creates a new checkout API handler
func NewHandler(service *checkout.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// Routes mounts the guest checkout endpoints. All of them are public:
// the caller is a guest with no session.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/request-verification", h.RequestVerification)
	r.Get("/verify", h.Verify)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Get("/status", h.Status)
	return r
}

// RequestVerification handles POST /checkout/request-verification
func (h *Handler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req RequestVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email is required"})
		return
	}

	err := h.service.RequestGuestVerification(r.Context(), req.Email)
	if err != nil {
		status := http.StatusInternalServerError
		message := "An error occurred while sending verification email"

		if errors.Is(err, checkout.ErrRateLimited) {
			status = http.StatusTooManyRequests
			message = "Too many verification emails sent. Please try again later"
		} else {
			slog.Error("Failed to request guest verification", "error", err)
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RequestVerificationResponse{
		Message: "Verification email sent successfully",
	})
}

// Verify handles GET /checkout/verify (the emailed link lands here)
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if email == "" || token == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email and token are required"})
		return
	}

	err := h.service.VerifyGuestToken(r.Context(), email, token)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to verify email"

		switch {
		case errors.Is(err, checkout.ErrNoPendingCheckout):
			status = http.StatusNotFound
			message = "No pending checkout verification for this email"
		case errors.Is(err, checkout.ErrInvalidGuestToken),
			errors.Is(err, verification.ErrInvalidFormat),
			errors.Is(err, verification.ErrTokenNotFound):
			status = http.StatusNotFound
			message = "Invalid verification token"
		case errors.Is(err, verification.ErrExpired):
			message = "Verification link has expired, please request a new one"
		default:
			slog.Error("Failed to verify guest token", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while verifying email"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyResponse{
		Message: "Email verified successfully, you can return to checkout",
		Email:   email,
	})
}

// VerifyOTP handles POST /checkout/verify-otp
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

	err := h.service.VerifyGuestOTP(r.Context(), req.Email, req.OTPCode)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to verify code"

		switch {
		case errors.Is(err, checkout.ErrNoPendingCheckout),
			errors.Is(err, verification.ErrNoPendingVerification):
			status = http.StatusNotFound
			message = "No pending checkout verification for this email"
		case errors.Is(err, verification.ErrIncorrectCode),
			errors.Is(err, verification.ErrInvalidFormat):
			message = "Incorrect verification code"
		case errors.Is(err, verification.ErrExpired):
			message = "Verification code has expired, please request a new one"
		case errors.Is(err, verification.ErrMaxAttempts):
			message = "Too many incorrect attempts, please request a new code"
		default:
			slog.Error("Failed to verify guest code", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while verifying code"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyResponse{
		Message: "Email verified successfully, you can return to checkout",
		Email:   req.Email,
	})
}

// Status handles GET /checkout/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email is required"})
		return
	}

	verified, err := h.service.GuestStatus(r.Context(), email)
	if err != nil {
		if errors.Is(err, checkout.ErrNoPendingCheckout) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: "No pending checkout verification for this email"})
			return
		}
		slog.Error("Failed to get guest status", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while retrieving status"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatusResponse{Verified: verified})
}
