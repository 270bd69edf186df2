package services

import (
	"fmt"

	"iap-verify-api/internal/config"
	"iap-verify-api/internal/database"
	"iap-verify-api/internal/models"

	"gorm.io/gorm"
)

// AppService provides app registry operations
type AppService struct {
	db *gorm.DB
}

// NewAppService creates a new app service
func NewAppService() *AppService {
	return &AppService{
		db: database.GetDB(),
	}
}

// GetAppByBundleID gets an app by bundle ID
func (s *AppService) GetAppByBundleID(bundleID string) (*models.App, error) {
	var app models.App
	result := s.db.Where("bundle_id = ? AND is_active = ?", bundleID, true).First(&app)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("app not found")
		}
		return nil, result.Error
	}
	return &app, nil
}

// ValidateApp validates bundle ID and API key
func (s *AppService) ValidateApp(bundleID, apiKey string) bool {
	app, err := s.GetAppByBundleID(bundleID)
	if err != nil {
		return false
	}
	return app.APIKey == apiKey && app.IsActive
}

// ResolveSharedSecret resolves the App Store shared secret for a bundle:
// environment-configured per-bundle secrets first, then the app registry
// row, then the global fallback secret. Empty means the bundle cannot be
// verified.
func (s *AppService) ResolveSharedSecret(bundleID string) string {
	if secret, ok := config.AppConfig.BundleSecrets[bundleID]; ok && secret != "" {
		return secret
	}
	if app, err := s.GetAppByBundleID(bundleID); err == nil && app.SharedSecret != "" {
		return app.SharedSecret
	}
	return config.AppConfig.AppStoreSharedSecret
}

// GetAllApps gets all active apps
func (s *AppService) GetAllApps() ([]*models.App, error) {
	var apps []*models.App
	result := s.db.Where("is_active = ?", true).Find(&apps)
	if result.Error != nil {
		return nil, result.Error
	}
	return apps, nil
}

// CreateApp creates a new app registration
func (s *AppService) CreateApp(app *models.App) error {
	// Check if bundle ID already exists
	var existingApp models.App
	result := s.db.Where("bundle_id = ?", app.BundleID).First(&existingApp)
	if result.Error == nil {
		return fmt.Errorf("app with bundle ID %s already exists", app.BundleID)
	}

	// Check if API key already exists
	result = s.db.Where("api_key = ?", app.APIKey).First(&existingApp)
	if result.Error == nil {
		return fmt.Errorf("app with API key already exists")
	}

	// Create app
	if err := s.db.Create(app).Error; err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return nil
}

// UpdateApp updates an existing app registration
func (s *AppService) UpdateApp(bundleID string, updates map[string]interface{}) error {
	result := s.db.Model(&models.App{}).Where("bundle_id = ?", bundleID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update app: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("app not found")
	}
	return nil
}

// DeleteApp soft deletes an app registration
func (s *AppService) DeleteApp(bundleID string) error {
	result := s.db.Where("bundle_id = ?", bundleID).Delete(&models.App{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete app: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("app not found")
	}
	return nil
}

// GetAppStats gets verification statistics for an app
func (s *AppService) GetAppStats(bundleID string) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	s.db.Model(&models.ValidationLog{}).
		Where("bundle_id = ?", bundleID).
		Count(&total)
	stats["total_verifications"] = total

	var valid int64
	s.db.Model(&models.ValidationLog{}).
		Where("bundle_id = ? AND is_valid = ?", bundleID, true).
		Count(&valid)
	stats["valid_verifications"] = valid

	var invalid int64
	s.db.Model(&models.ValidationLog{}).
		Where("bundle_id = ? AND is_valid = ?", bundleID, false).
		Count(&invalid)
	stats["invalid_verifications"] = invalid

	return stats, nil
}
