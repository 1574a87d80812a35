package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hyprbank/ledger/internal/query"
	"github.com/hyprbank/ledger/shared/middleware"
	"github.com/hyprbank/ledger/shared/models"
	"go.uber.org/zap"
)

// respondWithLedgerError maps domain errors to HTTP responses. Anything
// unrecognised is logged in full and reported as a generic 500 with fallback.
func respondWithLedgerError(c *gin.Context, log *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, models.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Amount must be greater than zero with at most two decimal places")
	case errors.Is(err, models.ErrSameAccount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Origin and destination accounts must be different")
	case errors.Is(err, models.ErrInsufficientFunds):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, query.ErrInvalidFilter):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	default:
		userID, _ := middleware.GetUserID(c)
		middleware.RequestLogger(c, log).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int64("userId", userID),
			zap.Error(err),
		)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
