package api

import (
	"net/http"
	"time"

	"iap-verify-api/internal/models"
	"iap-verify-api/internal/response"
	"iap-verify-api/internal/services"
	"iap-verify-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// genericRejection is the only failure message callers ever see; the real
// reason is logged and written to the audit log server-side
const genericRejection = "invalid receipt"

// ReceiptVerifier runs the verification pipeline for a claimed receipt
type ReceiptVerifier interface {
	VerifyReceipt(claimed services.ClaimedReceipt, secret string) services.ValidationOutcome
}

// SecretResolver resolves the App Store shared secret for a bundle
type SecretResolver interface {
	ResolveSharedSecret(bundleID string) string
}

// AuditStore persists and queries validation audit records
type AuditStore interface {
	Save(log *models.ValidationLog) error
	FindByTransactionID(bundleID, transactionID string) ([]models.ValidationLog, error)
}

// AppDirectory looks up registered apps (for webhook configuration)
type AppDirectory interface {
	GetAppByBundleID(bundleID string) (*models.App, error)
}

// ReceiptHandler handles receipt verification requests
type ReceiptHandler struct {
	verifier ReceiptVerifier
	secrets  SecretResolver
	audits   AuditStore
	apps     AppDirectory              // optional, enables webhook notifications
	notifier *services.WebhookNotifier // optional
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(verifier ReceiptVerifier, secrets SecretResolver, audits AuditStore, apps AppDirectory, notifier *services.WebhookNotifier) *ReceiptHandler {
	return &ReceiptHandler{
		verifier: verifier,
		secrets:  secrets,
		audits:   audits,
		apps:     apps,
		notifier: notifier,
	}
}

// VerifyReceiptRequest represents a receipt verification request
type VerifyReceiptRequest struct {
	BundleID         string `json:"bundle_id" binding:"required"`      // iOS bundle ID
	ProductID        string `json:"product_id" binding:"required"`     // purchased product ID
	TransactionID    string `json:"transaction_id" binding:"required"` // claimed transaction ID
	Token            string `json:"token" binding:"required"`          // Base64 receipt data
	DeveloperPayload string `json:"developer_payload"`                 // optional opaque payload
}

// VerifyReceipt verifies a claimed purchase receipt
// POST /api/receipt/verify
func (h *ReceiptHandler) VerifyReceipt(c *gin.Context) {
	var req VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logging.Infof("Rejected malformed verify request: %v", err)
		response.ErrorJSON(c, http.StatusBadRequest, genericRejection)
		return
	}

	claimed := services.ClaimedReceipt{
		BundleID:         req.BundleID,
		ProductID:        req.ProductID,
		TransactionID:    req.TransactionID,
		Token:            req.Token,
		DeveloperPayload: req.DeveloperPayload,
	}

	secret := h.secrets.ResolveSharedSecret(req.BundleID)
	outcome := h.verifier.VerifyReceipt(claimed, secret)

	h.writeAuditLog(claimed, outcome)

	if !outcome.IsValid {
		logging.Infof("Receipt rejected - bundle: %s, transaction: %s, reason: %s",
			req.BundleID, req.TransactionID, outcome.Reason)
		response.ErrorJSON(c, http.StatusBadRequest, genericRejection)
		return
	}

	logging.Infof("Receipt validated - bundle: %s, product: %s, transaction: %s",
		req.BundleID, req.ProductID, outcome.Purchase.TransactionID)

	h.notifyAppBackend(outcome)

	response.SuccessJSON(c, outcome.Purchase)
}

// writeAuditLog persists the audit record; verification never depends on
// this succeeding
func (h *ReceiptHandler) writeAuditLog(claimed services.ClaimedReceipt, outcome services.ValidationOutcome) {
	if h.audits == nil {
		return
	}

	log := &models.ValidationLog{
		BundleID:      claimed.BundleID,
		ProductID:     claimed.ProductID,
		TransactionID: claimed.TransactionID,
		TokenHash:     services.TokenHash(claimed.Token),
		IsValid:       outcome.IsValid,
		Reason:        outcome.Reason,
		Environment:   outcome.Environment,
		ValidatedAt:   time.Now().UTC(),
	}
	if outcome.Purchase != nil {
		log.TransactionID = outcome.Purchase.TransactionID
		log.OriginalTransactionID = outcome.Purchase.OriginalTransactionID
		log.PurchaseDate = &outcome.Purchase.PurchaseDate
		log.ExpiresDate = outcome.Purchase.ExpiresDate
	}

	if err := h.audits.Save(log); err != nil {
		logging.Errorf("Failed to write validation audit log - bundle: %s, transaction: %s, error: %v",
			claimed.BundleID, claimed.TransactionID, err)
	}
}

// notifyAppBackend fires the webhook for a validated purchase when the app
// has a callback configured
func (h *ReceiptHandler) notifyAppBackend(outcome services.ValidationOutcome) {
	if h.apps == nil || h.notifier == nil || outcome.Purchase == nil {
		return
	}

	app, err := h.apps.GetAppByBundleID(outcome.Purchase.BundleID)
	if err != nil || app.WebhookCallbackURL == "" {
		return
	}

	go h.notifier.NotifyPurchaseValidated(app.WebhookCallbackURL, app.WebhookSecret, outcome.Environment, outcome.Purchase)
}
