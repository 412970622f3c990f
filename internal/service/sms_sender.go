package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"payquest/config"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// smsPayload is the JSON body posted to the SMS gateway.
type smsPayload struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// GatewaySMSSender implements ports.SMSSender against an HTTP SMS gateway.
type GatewaySMSSender struct {
	url        string
	apiKey     string
	senderID   string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewGatewaySMSSender creates a sender posting to cfg.SMSGatewayURL.
func NewGatewaySMSSender(cfg config.OTPConfig, httpClient HTTPClient, log zerolog.Logger) *GatewaySMSSender {
	return &GatewaySMSSender{
		url:        cfg.SMSGatewayURL,
		apiKey:     cfg.SMSAPIKey,
		senderID:   cfg.SenderID,
		httpClient: httpClient,
		log:        log,
	}
}

// Send delivers one message. Any non-2xx answer is a delivery failure.
func (s *GatewaySMSSender) Send(ctx context.Context, phone string, message string) error {
	body, err := json.Marshal(smsPayload{To: phone, From: s.senderID, Message: message})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway: unexpected status %d", resp.StatusCode)
	}

	s.log.Debug().Str("phone", maskPhone(phone)).Int("status", resp.StatusCode).Msg("sms delivered")
	return nil
}

// LogSMSSender writes messages to the log instead of sending them.
// Used when no gateway is configured (local development).
type LogSMSSender struct {
	log zerolog.Logger
}

// NewLogSMSSender creates a log-only sender.
func NewLogSMSSender(log zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{log: log}
}

// Send logs the message.
func (s *LogSMSSender) Send(_ context.Context, phone string, message string) error {
	s.log.Warn().Str("phone", maskPhone(phone)).Str("message", message).Msg("sms gateway not configured, message logged only")
	return nil
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return fmt.Sprintf("%s%s", bytes.Repeat([]byte("*"), len(phone)-4), phone[len(phone)-4:])
}
