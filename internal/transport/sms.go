package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// SMSResult is what the worker needs from a successful provider response.
// Cost is normalized to a positive dollar amount; the provider reports
// prices as negative strings.
type SMSResult struct {
	TransportID string
	Cost        float64
}

// SMSConfig configures the Twilio-style messaging API client. BaseURL is
// overridable so tests and local runs can point at a fake provider.
type SMSConfig struct {
	BaseURL             string
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	FromNumber          string
}

// SMSClient sends messages through a Twilio-style REST API.
type SMSClient struct {
	httpClient *http.Client
	cfg        SMSConfig
	logger     *slog.Logger
}

func NewSMSClient(cfg SMSConfig, logger *slog.Logger) *SMSClient {
	return &SMSClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
		logger:     logger,
	}
}

type smsAPIResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	Price        *string `json:"price"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	Message      string  `json:"message"`
}

// Send posts one message to the provider. The destination must already be
// E.164; callers normalize before enqueueing and the worker re-normalizes
// before dispatch.
func (c *SMSClient) Send(ctx context.Context, p domain.SMSPayload) (*SMSResult, error) {
	form := url.Values{}
	form.Set("To", p.PhoneNumber)
	form.Set("Body", p.Content)
	if c.cfg.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", c.cfg.MessagingServiceSID)
	} else {
		form.Set("From", c.cfg.FromNumber)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp smsAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decoding sms response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		msg := apiResp.Message
		if apiResp.ErrorMessage != nil {
			msg = *apiResp.ErrorMessage
		}
		return nil, fmt.Errorf("sms provider error (status %d): %s", resp.StatusCode, msg)
	}

	if apiResp.Status == "failed" || apiResp.Status == "undelivered" {
		return nil, fmt.Errorf("sms rejected by provider: status %s", apiResp.Status)
	}

	result := &SMSResult{TransportID: apiResp.SID}
	if apiResp.Price != nil {
		if price, err := strconv.ParseFloat(*apiResp.Price, 64); err == nil {
			if price < 0 {
				price = -price
			}
			result.Cost = price
		}
	}

	return result, nil
}
