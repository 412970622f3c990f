package handler

import (
	"payquest/internal/adapter/http/dto"
	"payquest/internal/adapter/http/middleware"
	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/internal/metrics"
	"payquest/pkg/apperror"
	"payquest/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LedgerHandler serves the transaction ledger, the address book and transfers.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
	log       zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc, log: log}
}

// ListTransactions handles GET /api/v1/users/:userID/transactions.
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	txns, err := h.ledgerSvc.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	response.OK(c, txns)
}

// AddTransaction handles POST /api/v1/users/:userID/transactions.
func (h *LedgerHandler) AddTransaction(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.ledgerSvc.AddTransaction(c.Request.Context(), userID, req.ToDomain())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, txn)
}

// ListContacts handles GET /api/v1/users/:userID/contacts.
func (h *LedgerHandler) ListContacts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	contacts, err := h.ledgerSvc.ListContacts(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}

	response.OK(c, contacts)
}

// AddContact handles POST /api/v1/users/:userID/contacts.
func (h *LedgerHandler) AddContact(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	contact, err := h.ledgerSvc.AddContact(c.Request.Context(), userID, req.ToDomain())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, contact)
}

// Transfer handles POST /api/v1/users/:userID/transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	senderName := req.SenderName
	if senderName == "" {
		senderName = middleware.UserName(c)
	}

	result, err := h.ledgerSvc.Transfer(c.Request.Context(), domain.TransferRequest{
		SenderID:      userID,
		SenderName:    senderName,
		RecipientID:   req.RecipientID,
		RecipientName: req.RecipientName,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
	})
	metrics.RecordTransfer(err)
	if err != nil {
		h.log.Warn().Err(err).
			Str("sender_id", userID.String()).
			Str("recipient_id", req.RecipientID.String()).
			Msg("transfer rejected")
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
