package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hyprbank/ledger/shared/middleware"
	"github.com/hyprbank/ledger/shared/models"
)

// RegisterRoutes mounts the public API. Every route except /health requires a bearer token.
func RegisterRoutes(router *gin.Engine, jwtSecret []byte, tx *TransactionHandler, accounts *AccountHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1", middleware.AuthMiddleware(jwtSecret))
	{
		txs := v1.Group("/transactions")
		txs.POST("/deposit", tx.Deposit)
		txs.POST("/withdraw", tx.Withdraw)
		txs.POST("/transfer", tx.InternalTransfer)
		txs.POST("/transfer-to-user", tx.TransferToUser)
		txs.POST("/external-transfer", tx.ExternalTransfer)

		v1.GET("/accounts", accounts.ListAccounts)
		v1.GET("/accounts/:accountNumber", accounts.GetAccount)
		v1.GET("/movements/history", accounts.History)

		admin := v1.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.POST("/deposits", tx.AdminDeposit)
		admin.GET("/accounts/:accountNumber", accounts.AdminGetAccount)
		admin.GET("/movements", accounts.AllMovements)
	}
}
