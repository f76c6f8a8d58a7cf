package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/otp"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/transport"
)

// Verifier is the guard surface the handler needs.
type Verifier interface {
	Issue(ctx context.Context, userID, phone string) (*otp.IssueResult, error)
	Verify(ctx context.Context, userID, phone, code, pinNumber string) error
}

type VerifyHandler struct {
	guard Verifier
}

func NewVerifyHandler(guard Verifier) *VerifyHandler {
	return &VerifyHandler{guard: guard}
}

type startRequest struct {
	Phone  string `json:"phone"`
	UserID string `json:"user_id"`
}

type startResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	ExpiresAt string `json:"expires_at"`
}

// Start issues a new verification code. The response carries session
// metadata only, never the code.
func (h *VerifyHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "phone and user_id are required")
		return
	}

	res, err := h.guard.Issue(r.Context(), req.UserID, req.Phone)
	if err != nil {
		status := http.StatusInternalServerError
		if isClientError(err) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, startResponse{
		Success:   true,
		SessionID: res.SessionID,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type checkRequest struct {
	Phone     string `json:"phone"`
	UserID    string `json:"user_id"`
	Code      string `json:"code"`
	PinNumber string `json:"pin_number"`
}

type checkResponse struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

type checkErrorResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

// Check validates a submitted code. Client-correctable failures (wrong code,
// expired session, lockout) come back as 400 with a human-readable message;
// 500 is reserved for infrastructure failures.
func (h *VerifyHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" || req.UserID == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "phone, user_id and code are required")
		return
	}

	err := h.guard.Verify(r.Context(), req.UserID, req.Phone, req.Code, req.PinNumber)
	if err == nil {
		respondJSON(w, http.StatusOK, checkResponse{Success: true, Verified: true})
		return
	}

	var mismatch *otp.CodeMismatchError
	if errors.As(err, &mismatch) {
		respondJSON(w, http.StatusBadRequest, checkErrorResponse{
			Error:             err.Error(),
			AttemptsRemaining: &mismatch.AttemptsRemaining,
		})
		return
	}

	if isClientError(err) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondError(w, http.StatusInternalServerError, "verification failed")
}

func isClientError(err error) bool {
	return errors.Is(err, otp.ErrNoActiveSession) ||
		errors.Is(err, otp.ErrSessionExpired) ||
		errors.Is(err, otp.ErrTooManyAttempts) ||
		errors.Is(err, otp.ErrLockedOut) ||
		errors.Is(err, otp.ErrPinMismatch) ||
		errors.Is(err, transport.ErrInvalidPhone)
}
