package api

import (
	"net/http"

	"iap-verify-api/internal/response"
	"iap-verify-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// GetReceiptHistory returns the validation audit records for a transaction.
// The bundle id comes from the app auth middleware.
// GET /api/receipt/:transaction_id
func (h *ReceiptHandler) GetReceiptHistory(c *gin.Context) {
	transactionID := c.Param("transaction_id")
	if transactionID == "" {
		response.ErrorJSON(c, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	bundleID := ""
	if bid, exists := c.Get("bundle_id"); exists {
		bundleID, _ = bid.(string)
	}
	if bundleID == "" {
		response.ErrorJSON(c, http.StatusUnauthorized, "Missing bundle_id")
		return
	}

	logs, err := h.audits.FindByTransactionID(bundleID, transactionID)
	if err != nil {
		logging.Errorf("Failed to query validation history - bundle: %s, transaction: %s, error: %v",
			bundleID, transactionID, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to get validation history")
		return
	}

	response.SuccessJSON(c, logs)
}
