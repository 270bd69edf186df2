package models

import (
	"time"
)

// ValidationLog is the audit record written after every verification attempt.
// The raw receipt token is never stored, only its SHA-256 hash.
type ValidationLog struct {
	BaseModel

	BundleID      string `json:"bundle_id" gorm:"not null;index"`
	ProductID     string `json:"product_id" gorm:"size:100"`
	TransactionID string `json:"transaction_id" gorm:"size:100;index"`
	TokenHash     string `json:"token_hash" gorm:"size:64;index"`

	IsValid bool   `json:"is_valid" gorm:"index"`
	Reason  string `json:"reason" gorm:"type:text"` // populated only on failure

	// Vendor-reported fields, populated on success
	OriginalTransactionID string     `json:"original_transaction_id" gorm:"size:100"`
	Environment           string     `json:"environment" gorm:"size:20"` // Production or Sandbox
	PurchaseDate          *time.Time `json:"purchase_date"`
	ExpiresDate           *time.Time `json:"expires_date"`

	ValidatedAt time.Time `json:"validated_at"`
}

// TableName specifies the table name
func (ValidationLog) TableName() string {
	return "validation_logs"
}
