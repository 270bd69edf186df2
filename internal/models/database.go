package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel provides common fields for all database models
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

// App represents a registered application allowed to verify receipts
type App struct {
	BaseModel
	BundleID    string `json:"bundle_id" gorm:"uniqueIndex;not null"` // iOS bundle ID, identifies the app
	AppName     string `json:"app_name" gorm:"not null"`
	APIKey      string `json:"api_key" gorm:"uniqueIndex;not null"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`
	Description string `json:"description"`

	// Per-app App Store shared secret; overrides the global secret when set.
	// Environment-configured secrets take precedence over this value.
	SharedSecret string `json:"shared_secret" gorm:"type:varchar(255)"`

	// Webhook configuration (used to notify the app backend of validated purchases)
	WebhookCallbackURL string `json:"webhook_callback_url" gorm:"type:varchar(500)"`
	WebhookSecret      string `json:"webhook_secret" gorm:"type:varchar(255)"` // for signature verification (optional)
}
