// Package remote is the client side of the backend HTTP API. It implements
// ports.RemoteStore and carries no business logic.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"payquest/config"
	"payquest/internal/adapter/http/dto"
	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"
	"payquest/pkg/logger"
	"payquest/pkg/response"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client implements ports.RemoteStore over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	identity   ports.IdentityProvider
	log        zerolog.Logger
}

// New creates a remote store client. Every request carries the bearer token
// of the identity's current user.
func New(cfg config.ClientConfig, identity ports.IdentityProvider, log zerolog.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		identity: identity,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.Component(log, "remote_store"),
	}
}

func userPath(userID uuid.UUID, suffix string) string {
	return "/api/v1/users/" + userID.String() + suffix
}

// GetWallet returns nil, nil when the backend has no wallet for the user.
func (c *Client) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error) {
	var out dto.WalletResponse
	if err := c.do(ctx, http.MethodGet, userPath(userID, "/wallet"), nil, &out); err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec := &domain.WalletRecord{UserID: userID, Balance: out.Balance, PINHash: out.PIN}
	if t, err := time.Parse(time.RFC3339, out.UpdatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// UpdateWalletBalance overwrites the remote balance.
func (c *Client) UpdateWalletBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	return c.do(ctx, http.MethodPut, userPath(userID, "/wallet/balance"),
		dto.UpdateBalanceRequest{Balance: &balance}, nil)
}

// ResetWallet clears the remote ledger and contacts and sets the balance.
func (c *Client) ResetWallet(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	return c.do(ctx, http.MethodPost, userPath(userID, "/wallet/reset"),
		dto.UpdateBalanceRequest{Balance: &balance}, nil)
}

// UpdateWalletPIN stores the PIN credential hash remotely.
func (c *Client) UpdateWalletPIN(ctx context.Context, userID uuid.UUID, pinHash string) error {
	return c.do(ctx, http.MethodPut, userPath(userID, "/wallet/pin"),
		dto.UpdatePINRequest{PIN: pinHash}, nil)
}

// GetTransactions returns the remote ledger, newest first.
func (c *Client) GetTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	var out []domain.Transaction
	if err := c.do(ctx, http.MethodGet, userPath(userID, "/transactions"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddTransaction appends an entry; the backend ignores replays of a known id.
func (c *Client) AddTransaction(ctx context.Context, userID uuid.UUID, t domain.Transaction) (*domain.Transaction, error) {
	req := dto.TransactionRequest{
		ID:               t.ID,
		Amount:           t.Amount,
		Type:             string(t.Type),
		Description:      t.Description,
		CounterpartyName: t.CounterpartyName,
		Timestamp:        t.Timestamp,
		RecipientUserID:  t.RecipientUserID,
	}
	var out domain.Transaction
	if err := c.do(ctx, http.MethodPost, userPath(userID, "/transactions"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContacts returns the remote address book.
func (c *Client) GetContacts(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error) {
	var out []domain.Contact
	if err := c.do(ctx, http.MethodGet, userPath(userID, "/contacts"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddContact appends an address-book entry.
func (c *Client) AddContact(ctx context.Context, userID uuid.UUID, ct domain.Contact) (*domain.Contact, error) {
	req := dto.ContactRequest{
		ID:           ct.ID,
		Name:         ct.Name,
		Phone:        ct.Phone,
		Email:        ct.Email,
		Picture:      ct.Picture,
		LinkedUserID: ct.LinkedUserID,
	}
	var out domain.Contact
	if err := c.do(ctx, http.MethodPost, userPath(userID, "/contacts"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferToUser asks the backend to move value between two ledgers.
func (c *Client) TransferToUser(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	body := dto.TransferRequest{
		SenderName:    req.SenderName,
		RecipientID:   req.RecipientID,
		RecipientName: req.RecipientName,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
	}
	var out domain.TransferResult
	if err := c.do(ctx, http.MethodPost, userPath(req.SenderID, "/transfers"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrCreateAchievementStats returns the remote stats row, created zeroed on first use.
func (c *Client) GetOrCreateAchievementStats(ctx context.Context, userID uuid.UUID) (*domain.AchievementRecord, error) {
	var out domain.AchievementRecord
	if err := c.do(ctx, http.MethodGet, userPath(userID, "/achievements"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAchievementStats replaces the remote stats snapshot.
func (c *Client) UpdateAchievementStats(ctx context.Context, userID uuid.UUID, stats domain.Stats, unlocked []string) error {
	return c.do(ctx, http.MethodPut, userPath(userID, "/achievements"),
		dto.AchievementStatsRequest{Stats: stats, Unlocked: unlocked}, nil)
}

// do sends one request and decodes the response envelope into out.
// Network failures and 5xx answers become NET_001; other error envelopes are
// returned as the AppError they describe.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	id := c.identity.Current()
	if !id.Authenticated() {
		return apperror.ErrUnauthenticated()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+id.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.ErrRemoteUnavailable(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.ErrRemoteUnavailable(fmt.Errorf("read response: %w", err))
	}

	var env response.Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 500 {
			return fmt.Errorf("decode response envelope: %w", err)
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return apperror.ErrRemoteUnavailable(env.AsError(resp.StatusCode))
	case resp.StatusCode >= 400:
		return env.AsError(resp.StatusCode)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s payload: %w", method, path, err)
	}
	return nil
}
