package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hyprbank/ledger/shared/cqrs"
	"github.com/hyprbank/ledger/shared/middleware"
	"github.com/hyprbank/ledger/shared/models"
	"go.uber.org/zap"
)

// AccountQuerier defines the read-side account operations used by AccountHandler.
type AccountQuerier interface {
	ListAccounts(context.Context, cqrs.ListAccountsQuery) (*models.AccountsSummary, error)
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	AdminGetAccount(context.Context, string) (*models.AdminAccountView, error)
}

// MovementQuerier defines the read-side movement operations used by AccountHandler.
type MovementQuerier interface {
	History(context.Context, cqrs.MovementHistoryQuery) ([]models.MovementView, error)
	AllMovements(context.Context, int) ([]models.AdminMovementView, error)
}

type AccountHandler struct {
	accounts  AccountQuerier
	movements MovementQuerier
	log       *zap.Logger
}

type HistoryParams struct {
	StartDate string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Type      string `form:"type" validate:"omitempty,oneof=INCOME EXPENSE"`
	Limit     int    `form:"limit" validate:"omitempty,min=1"`
}

type ListMovementsResponse struct {
	Movements any `json:"movements"`
}

func NewAccountHandler(accounts AccountQuerier, movements MovementQuerier, log *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, movements: movements, log: log}
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	summary, err := h.accounts.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{UserID: userID})
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to list accounts")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.accounts.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		AccountNumber:    c.Param("accountNumber"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to get account")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) AdminGetAccount(c *gin.Context) {
	view, err := h.accounts.AdminGetAccount(c.Request.Context(), c.Param("accountNumber"))
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to get account")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) History(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var params HistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	if validationErrors := middleware.ValidateRequest(params); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	q := cqrs.MovementHistoryQuery{
		UserID: userID,
		Type:   models.MovementType(params.Type),
		Limit:  params.Limit,
	}
	// formats were checked by the validator above
	if params.StartDate != "" {
		q.StartDate, _ = time.Parse(models.DateLayout, params.StartDate)
	}
	if params.EndDate != "" {
		q.EndDate, _ = time.Parse(models.DateLayout, params.EndDate)
	}

	views, err := h.movements.History(c.Request.Context(), q)
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to list movements")
		return
	}
	c.JSON(http.StatusOK, ListMovementsResponse{Movements: views})
}

func (h *AccountHandler) AllMovements(c *gin.Context) {
	var params struct {
		Limit int `form:"limit" validate:"omitempty,min=1"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	if validationErrors := middleware.ValidateRequest(params); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	views, err := h.movements.AllMovements(c.Request.Context(), params.Limit)
	if err != nil {
		respondWithLedgerError(c, h.log, err, "Failed to list movements")
		return
	}
	c.JSON(http.StatusOK, ListMovementsResponse{Movements: views})
}
