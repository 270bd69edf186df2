package database

import (
	"iap-verify-api/internal/models"
)

// ValidationLogStore persists and queries receipt validation audit records
type ValidationLogStore struct{}

// NewValidationLogStore creates a new validation log store
func NewValidationLogStore() *ValidationLogStore {
	return &ValidationLogStore{}
}

// Save persists a validation audit record
func (s *ValidationLogStore) Save(log *models.ValidationLog) error {
	return DB.Create(log).Error
}

// FindByTransactionID returns audit records for a transaction, newest first (per app)
func (s *ValidationLogStore) FindByTransactionID(bundleID, transactionID string) ([]models.ValidationLog, error) {
	var logs []models.ValidationLog
	err := DB.Where("bundle_id = ? AND transaction_id = ?", bundleID, transactionID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// FindLatestByTokenHash returns the most recent audit record for a token hash
func (s *ValidationLogStore) FindLatestByTokenHash(bundleID, tokenHash string) (*models.ValidationLog, error) {
	var log models.ValidationLog
	err := DB.Where("bundle_id = ? AND token_hash = ?", bundleID, tokenHash).
		Order("created_at DESC").
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}
