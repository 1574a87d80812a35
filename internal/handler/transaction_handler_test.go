package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hyprbank/ledger/shared/cqrs"
	"github.com/hyprbank/ledger/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock implementations ----

type mockTransactionCommander struct {
	depositFn  func(cqrs.DepositCommand) (*models.MovementResult, error)
	withdrawFn func(cqrs.WithdrawalCommand) (*models.MovementResult, error)
	internalFn func(cqrs.TransferCommand) (*models.TransferResult, error)
	toUserFn   func(cqrs.TransferCommand) (*models.TransferResult, error)
	externalFn func(cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error)
}

func (m *mockTransactionCommander) Deposit(_ context.Context, cmd cqrs.DepositCommand) (*models.MovementResult, error) {
	if m.depositFn != nil {
		return m.depositFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionCommander) Withdrawal(_ context.Context, cmd cqrs.WithdrawalCommand) (*models.MovementResult, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionCommander) InternalTransfer(_ context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	if m.internalFn != nil {
		return m.internalFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionCommander) TransferToOtherUser(_ context.Context, cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	if m.toUserFn != nil {
		return m.toUserFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionCommander) ExternalTransfer(_ context.Context, cmd cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error) {
	if m.externalFn != nil {
		return m.externalFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func fakeAuth(userID int64, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("role", role)
		c.Next()
	}
}

func newTxTestRouter(cmds TransactionCommander, userID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(userID, models.RoleUser))
	h := NewTransactionHandler(cmds, zap.NewNop())
	txs := r.Group("/v1/transactions")
	txs.POST("/deposit", h.Deposit)
	txs.POST("/withdraw", h.Withdraw)
	txs.POST("/transfer", h.InternalTransfer)
	txs.POST("/transfer-to-user", h.TransferToUser)
	txs.POST("/external-transfer", h.ExternalTransfer)
	r.POST("/v1/admin/deposits", h.AdminDeposit)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- test data ----

var testMovementResult = &models.MovementResult{
	Message: "Deposit completed successfully.",
	Movement: models.MovementView{
		ID: 1, AccountNumber: "01000001", Date: "2026-01-02",
		Description: "Deposit", Type: models.Income, Amount: "50.00",
	},
	NewBalance: "50.00",
}

func movementBody() map[string]any {
	return map[string]any{"accountNumber": "01000001", "amount": 50.0, "description": "Salary"}
}

func transferBody() map[string]any {
	return map[string]any{"originAccountNumber": "01000001", "destinationAccountNumber": "01000002", "amount": "25.50"}
}

func externalBody() map[string]any {
	return map[string]any{
		"originAccountNumber":      "01000001",
		"destinationName":          "Jane Roe",
		"destinationBank":          "Other Bank",
		"destinationAccountNumber": "99887766",
		"amount":                   10,
		"description":              "rent",
	}
}

// ---- tests ----

func TestDeposit(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		depositFn      func(cqrs.DepositCommand) (*models.MovementResult, error)
		expectedStatus int
	}{
		{
			name:           "success - deposit into own account",
			body:           movementBody(),
			depositFn:      func(cqrs.DepositCommand) (*models.MovementResult, error) { return testMovementResult, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name: "not found - account belongs to someone else",
			body: movementBody(),
			depositFn: func(cqrs.DepositCommand) (*models.MovementResult, error) {
				return nil, fmt.Errorf("account 01000001: %w", models.ErrAccountNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "bad request - three decimal places",
			body: map[string]any{"accountNumber": "01000001", "amount": "10.005"},
			depositFn: func(cqrs.DepositCommand) (*models.MovementResult, error) {
				return nil, models.ErrInvalidAmount
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - missing required fields",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - amount is zero",
			body:           map[string]any{"accountNumber": "01000001", "amount": 0},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - negative amount",
			body:           map[string]any{"accountNumber": "01000001", "amount": -5},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - amount is not a number",
			body:           map[string]any{"accountNumber": "01000001", "amount": "ten"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "internal error - store failure",
			body: movementBody(),
			depositFn: func(cqrs.DepositCommand) (*models.MovementResult, error) {
				return nil, fmt.Errorf("connection reset")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockTransactionCommander{depositFn: tt.depositFn}
			router := newTxTestRouter(cmds, 7)
			w := doRequest(router, http.MethodPost, "/v1/transactions/deposit", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestDepositPassesCallerAndAmount(t *testing.T) {
	var got cqrs.DepositCommand
	cmds := &mockTransactionCommander{depositFn: func(cmd cqrs.DepositCommand) (*models.MovementResult, error) {
		got = cmd
		return testMovementResult, nil
	}}
	router := newTxTestRouter(cmds, 7)

	w := doRequest(router, http.MethodPost, "/v1/transactions/deposit", movementBody())
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "01000001", got.AccountNumber)
	assert.True(t, decimal.NewFromInt(50).Equal(got.Amount))
	assert.False(t, got.AsAdmin)

	var body models.MovementResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "50.00", body.NewBalance)
	assert.Equal(t, "Deposit completed successfully.", body.Message)
}

func TestAdminDepositSetsAsAdmin(t *testing.T) {
	var got cqrs.DepositCommand
	cmds := &mockTransactionCommander{depositFn: func(cmd cqrs.DepositCommand) (*models.MovementResult, error) {
		got = cmd
		return testMovementResult, nil
	}}
	router := newTxTestRouter(cmds, 1)

	w := doRequest(router, http.MethodPost, "/v1/admin/deposits", movementBody())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, got.AsAdmin)
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		withdrawFn     func(cqrs.WithdrawalCommand) (*models.MovementResult, error)
		expectedStatus int
	}{
		{
			name:           "success - withdraw from own account",
			body:           movementBody(),
			withdrawFn:     func(cqrs.WithdrawalCommand) (*models.MovementResult, error) { return testMovementResult, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name: "unprocessable entity - insufficient funds",
			body: movementBody(),
			withdrawFn: func(cqrs.WithdrawalCommand) (*models.MovementResult, error) {
				return nil, models.ErrInsufficientFunds
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "not found - account does not exist",
			body: movementBody(),
			withdrawFn: func(cqrs.WithdrawalCommand) (*models.MovementResult, error) {
				return nil, models.ErrAccountNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - description too long",
			body:           map[string]any{"accountNumber": "01000001", "amount": 1, "description": strings.Repeat("x", 256)},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockTransactionCommander{withdrawFn: tt.withdrawFn}
			router := newTxTestRouter(cmds, 7)
			w := doRequest(router, http.MethodPost, "/v1/transactions/withdraw", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestTransfers(t *testing.T) {
	okResult := &models.TransferResult{Message: "Transfer completed successfully.", NewOriginBalance: "74.50"}

	tests := []struct {
		name           string
		url            string
		body           any
		internalFn     func(cqrs.TransferCommand) (*models.TransferResult, error)
		toUserFn       func(cqrs.TransferCommand) (*models.TransferResult, error)
		expectedStatus int
	}{
		{
			name:           "success - internal transfer",
			url:            "/v1/transactions/transfer",
			body:           transferBody(),
			internalFn:     func(cqrs.TransferCommand) (*models.TransferResult, error) { return okResult, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name: "bad request - same account",
			url:  "/v1/transactions/transfer",
			body: transferBody(),
			internalFn: func(cqrs.TransferCommand) (*models.TransferResult, error) {
				return nil, models.ErrSameAccount
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "success - transfer to another user",
			url:            "/v1/transactions/transfer-to-user",
			body:           transferBody(),
			toUserFn:       func(cqrs.TransferCommand) (*models.TransferResult, error) { return okResult, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name: "not found - destination missing",
			url:  "/v1/transactions/transfer-to-user",
			body: transferBody(),
			toUserFn: func(cqrs.TransferCommand) (*models.TransferResult, error) {
				return nil, models.ErrAccountNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - missing destination",
			url:            "/v1/transactions/transfer-to-user",
			body:           map[string]any{"originAccountNumber": "01000001", "amount": 1},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockTransactionCommander{internalFn: tt.internalFn, toUserFn: tt.toUserFn}
			router := newTxTestRouter(cmds, 7)
			w := doRequest(router, http.MethodPost, tt.url, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestExternalTransfer(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		externalFn     func(cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error)
		expectedStatus int
	}{
		{
			name: "success - external transfer",
			body: externalBody(),
			externalFn: func(cmd cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error) {
				return &models.ExternalTransferResult{Message: "External transfer completed successfully.", NewOriginBalance: "90.00"}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "unprocessable entity - insufficient funds",
			body: externalBody(),
			externalFn: func(cqrs.ExternalTransferCommand) (*models.ExternalTransferResult, error) {
				return nil, models.ErrInsufficientFunds
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "bad request - missing bank",
			body:           map[string]any{"originAccountNumber": "01000001", "destinationName": "Jane", "destinationAccountNumber": "1", "amount": 1},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockTransactionCommander{externalFn: tt.externalFn}
			router := newTxTestRouter(cmds, 7)
			w := doRequest(router, http.MethodPost, "/v1/transactions/external-transfer", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
