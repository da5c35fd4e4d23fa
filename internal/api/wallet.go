package api

import (
	"bank_system/internal/domain"     // Error kinds
	"bank_system/internal/middleware" // Context keys
	"bank_system/internal/transfer"   // Orchestrator
	"bank_system/internal/utils"      // Outcome responses

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact amounts
)

// TransferRequest represents a transfer request. Amount accepts a JSON number or a decimal string.
type TransferRequest struct {
	RecipientAccountID string          `json:"recipient_account_id"` // Target account, e.g. ACC002
	Amount             decimal.Decimal `json:"amount"`               // Transfer amount
	Reference          string          `json:"reference"`            // Optional free text
}

// BalanceHandler returns the caller's balance
func BalanceHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.GetBalance(c.Request.Context(), c.GetString(middleware.TokenKey))
		utils.Respond(c, "Balance retrieved", view, err)
	}
}

// TransferHandler moves money from the caller to another account
func TransferHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, domain.NewError(domain.KindInvalidAmount, "Amount must be a number"))
			return
		}
		out, err := svc.SubmitTransfer(c.Request.Context(), c.GetString(middleware.TokenKey), req.RecipientAccountID, req.Amount, req.Reference)
		utils.Respond(c, "Transfer completed successfully", out, err)
	}
}

// TransferStatusHandler returns one transfer the caller is party to
func TransferStatusHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.GetTransferStatus(c.Request.Context(), c.GetString(middleware.TokenKey), c.Param("id"))
		utils.Respond(c, "Transfer retrieved", gin.H{"transfer": d}, err)
	}
}

// TransferHistoryHandler returns the caller's transfers, newest first
func TransferHistoryHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListTransfers(c.Request.Context(), c.GetString(middleware.TokenKey))
		utils.Respond(c, "Transfers retrieved", gin.H{"transfers": list, "count": len(list)}, err)
	}
}
