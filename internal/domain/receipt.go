// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// WebhookReceipt records a previously accepted request keyed by
// (user_id, scope, key), where scope identifies the endpoint (e.g. the
// webhook route) and key is the client-supplied Idempotency-Key header.
// It lets the middleware flag redelivered webhook batches so callers can
// detect retries.
//
// Note: this is delivery-level replay detection only. Item rows are never
// deduplicated by source_msg_id; resubmitting the same classified message
// without a key creates a second row.
type WebhookReceipt struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:3"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookReceipt) TableName() string { return "webhook_receipts" }
