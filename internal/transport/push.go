package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// PushClient sends notifications through an Expo-style push API: a single
// JSON POST per message, with a per-message status ticket in the response.
type PushClient struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

func NewPushClient(apiURL string, logger *slog.Logger) *PushClient {
	return &PushClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        apiURL,
		logger:     logger,
	}
}

type pushMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
}

type pushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type pushAPIResponse struct {
	Data pushTicket `json:"data"`
}

// Send posts one push message and returns the provider's receipt id.
func (c *PushClient) Send(ctx context.Context, p domain.PushPayload) (string, error) {
	msg := pushMessage{
		To:        p.Token,
		Title:     p.Title,
		Body:      p.Body,
		Data:      p.Data,
		Sound:     p.Sound,
		Priority:  p.Priority,
		ChannelID: p.ChannelID,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshaling push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("push provider error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp pushAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("decoding push response: %w", err)
	}

	if apiResp.Data.Status != "ok" {
		reason := apiResp.Data.Message
		if apiResp.Data.Details.Error != "" {
			reason = apiResp.Data.Details.Error
		}
		return "", fmt.Errorf("push rejected: %s", reason)
	}

	return apiResp.Data.ID, nil
}
