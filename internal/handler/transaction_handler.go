package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hyprbank/ledger/shared/cqrs"
	"github.com/hyprbank/ledger/shared/middleware"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	Deposit(context.Context, cqrs.DepositCommand) (*models.MovementResult, error)
	Withdrawal(context.Context, cqrs.WithdrawalCommand) (*models.MovementResult, error)
	InternalTransfer(context.Context, cqrs.TransferCommand) (*models.TransferResult, error)
	TransferToOtherUser(context.Context, cqrs.TransferCommand) (*models.TransferResult, error)
	ExternalTransfer(context.Context, cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	log      *zap.Logger
}

// MovementRequest is the body of deposits and withdrawals.
type MovementRequest struct {
	AccountNumber string          `json:"accountNumber" validate:"required,max=32"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description   string          `json:"description" validate:"max=255"`
}

type TransferRequest struct {
	OriginAccountNumber      string          `json:"originAccountNumber" validate:"required,max=32"`
	DestinationAccountNumber string          `json:"destinationAccountNumber" validate:"required,max=32"`
	Amount                   decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description              string          `json:"description" validate:"max=255"`
}

type ExternalTransferRequest struct {
	OriginAccountNumber      string          `json:"originAccountNumber" validate:"required,max=32"`
	DestinationName          string          `json:"destinationName" validate:"required,max=100"`
	DestinationBank          string          `json:"destinationBank" validate:"required,max=100"`
	DestinationAccountNumber string          `json:"destinationAccountNumber" validate:"required,max=32"`
	Amount                   decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Description              string          `json:"description" validate:"max=255"`
}

func NewTransactionHandler(commands TransactionCommander, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{commands: commands, log: log}
}

// bind decodes and validates the JSON body, writing the 400 response itself on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func (h *TransactionHandler) Deposit(c *gin.Context) {
	h.deposit(c, false)
}

// AdminDeposit credits any account by number. Routed behind RequireRole(ADMIN).
func (h *TransactionHandler) AdminDeposit(c *gin.Context) {
	h.deposit(c, true)
}

func (h *TransactionHandler) deposit(c *gin.Context, asAdmin bool) {
	userID, _ := middleware.GetUserID(c)

	var req MovementRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.Deposit(c.Request.Context(), cqrs.DepositCommand{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Description:   req.Description,
		UserID:        userID,
		AsAdmin:       asAdmin,
	})
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to process deposit")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransactionHandler) Withdraw(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req MovementRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.Withdrawal(c.Request.Context(), cqrs.WithdrawalCommand{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Description:   req.Description,
		UserID:        userID,
	})
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to process withdrawal")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransactionHandler) InternalTransfer(c *gin.Context) {
	h.transfer(c, h.commands.InternalTransfer)
}

func (h *TransactionHandler) TransferToUser(c *gin.Context) {
	h.transfer(c, h.commands.TransferToOtherUser)
}

func (h *TransactionHandler) transfer(c *gin.Context, run func(context.Context, cqrs.TransferCommand) (*models.TransferResult, error)) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if !bind(c, &req) {
		return
	}

	result, err := run(c.Request.Context(), cqrs.TransferCommand{
		OriginAccountNumber:      req.OriginAccountNumber,
		DestinationAccountNumber: req.DestinationAccountNumber,
		Amount:                   req.Amount,
		Description:              req.Description,
		UserID:                   userID,
	})
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to process transfer")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransactionHandler) ExternalTransfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ExternalTransferRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.commands.ExternalTransfer(c.Request.Context(), cqrs.ExternalTransferCommand{
		OriginAccountNumber:      req.OriginAccountNumber,
		DestinationName:          req.DestinationName,
		DestinationBank:          req.DestinationBank,
		DestinationAccountNumber: req.DestinationAccountNumber,
		Amount:                   req.Amount,
		Description:              req.Description,
		UserID:                   userID,
	})
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to process external transfer")
		return
	}
	c.JSON(http.StatusOK, result)
}
