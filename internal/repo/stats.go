// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries
// over the item tables, used by the stats endpoints and for conditional
// responses in the HTTP layer. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-actions-backend/internal/domain"
)

// ItemStats holds aggregate counts for one item kind scoped to a user.
// LastUpdated is the greatest updated_at among the user's rows and is nil
// when the user has no items.
type ItemStats struct {
	Total       int64      `json:"total"`
	Open        int64      `json:"open"`
	Done        int64      `json:"done"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// ItemsStats returns per-status counts for a user's items of the given
// kind. When the user has no items, all counts are zero and LastUpdated
// is nil.
func ItemsStats(ctx context.Context, db *gorm.DB, kind domain.Kind, userID string) (ItemStats, error) {
	var st ItemStats
	base := db.WithContext(ctx).Table(kind.Table()).Where("user_id = ?", userID)

	if err := base.Session(&gorm.Session{}).Count(&st.Total).Error; err != nil {
		return ItemStats{}, err
	}
	if st.Total == 0 {
		return st, nil
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", domain.StatusOpen).Count(&st.Open).Error; err != nil {
		return ItemStats{}, err
	}
	st.Done = st.Total - st.Open

	// Latest updated_at via ORDER BY + LIMIT (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := base.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return ItemStats{}, err
	}
	st.LastUpdated = &row.UpdatedAt
	return st, nil
}
