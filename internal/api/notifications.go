package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/store"
)

type NotificationHandler struct {
	store           *store.PostgresStore
	pushMaxAttempts int
}

func NewNotificationHandler(s *store.PostgresStore, pushMaxAttempts int) *NotificationHandler {
	return &NotificationHandler{store: s, pushMaxAttempts: pushMaxAttempts}
}

type enqueueRequest struct {
	Channel     string          `json:"channel"`
	RecipientID string          `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload"`
	DedupKey    string          `json:"dedup_key,omitempty"`
}

type enqueueResponse struct {
	RecordID     string `json:"record_id,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
}

// Create enqueues one delivery record. SMS eligibility is checked here at
// enqueue time and again by the worker at drain time.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel := domain.Channel(req.Channel)
	if channel != domain.ChannelPush && channel != domain.ChannelSMS {
		respondError(w, http.StatusBadRequest, "channel must be push or sms")
		return
	}
	if req.RecipientID == "" {
		respondError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		respondError(w, http.StatusBadRequest, "payload must be valid JSON")
		return
	}

	rec := domain.DeliveryRecord{
		RecipientID: req.RecipientID,
		Channel:     channel,
		Payload:     req.Payload,
		MaxAttempts: h.pushMaxAttempts,
	}
	if req.DedupKey != "" {
		rec.DedupKey = &req.DedupKey
	}

	if channel == domain.ChannelSMS {
		rec.MaxAttempts = 1

		pref, err := h.store.GetPreference(r.Context(), req.RecipientID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to check recipient eligibility")
			return
		}
		if pref == nil {
			respondError(w, http.StatusBadRequest, "recipient has no preference row")
			return
		}
		if ok, reason := pref.SMSEligible(timeNow()); !ok {
			respondError(w, http.StatusBadRequest, reason)
			return
		}
	}

	id, inserted, err := h.store.Enqueue(r.Context(), rec)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to enqueue notification")
		return
	}
	if !inserted {
		respondJSON(w, http.StatusOK, enqueueResponse{Deduplicated: true})
		return
	}

	respondJSON(w, http.StatusCreated, enqueueResponse{RecordID: id})
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	status := r.URL.Query().Get("status")
	recipientID := r.URL.Query().Get("recipient_id")
	limitStr := r.URL.Query().Get("limit")

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.store.ListRecords(r.Context(), channel, status, recipientID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetRecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get notification")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "notification not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
