// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Item
// model. Todos and follow-ups share one row shape, so every function takes
// the domain.Kind whose table it should operate on.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Validation is the job of the service
// layer; constraint violations surface here as raw driver errors.
//
// Error semantics:
//   - When an item is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. The repository never retries.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-actions-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ItemFilter restricts item queries. UserID is mandatory; Status and
// MinPriority are optional (zero value = no filter). MinPriority is a
// lower bound, not an exact match.
type ItemFilter struct {
	UserID      string
	Status      string
	MinPriority int
}

// apply scopes q to the filter's conditions.
func (f ItemFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ?", f.UserID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.MinPriority > 0 {
		q = q.Where("priority >= ?", f.MinPriority)
	}
	return q
}

// CreateItem inserts it into the kind's table. The store assigns item_id,
// and both timestamps are set to the same UTC instant so that
// updated_at == created_at immediately after creation.
func CreateItem(ctx context.Context, db *gorm.DB, kind domain.Kind, it *domain.Item) error {
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now
	return db.WithContext(ctx).Table(kind.Table()).Create(it).Error
}

// GetItem fetches a single item by its store-assigned id. If the record
// does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) (*domain.Item, error) {
	var it domain.Item
	err := db.WithContext(ctx).
		Table(kind.Table()).
		Where("item_id = ?", id).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateItemFields applies only the given columns to the item and refreshes
// updated_at. If no row matched (item missing), it returns ErrNotFound.
// The caller is responsible for having validated the values; unknown
// columns surface as driver errors.
func UpdateItemFields(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		// Nothing to change, but the row must still exist.
		_, err := GetItem(ctx, db, kind, id)
		return err
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Table(kind.Table()).
		Where("item_id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem hard-deletes the item. There is no tombstone: a second delete
// of the same id returns ErrNotFound.
func DeleteItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) error {
	res := db.WithContext(ctx).
		Table(kind.Table()).
		Where("item_id = ?", id).
		Delete(&domain.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountItems returns the number of items matching the filter.
// On DB error, it returns the error.
func CountItems(ctx context.Context, db *gorm.DB, kind domain.Kind, f ItemFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Table(kind.Table())).
		Count(&total).Error
	return total, err
}

// ListItemsPage returns a page of items matching the filter, ordered by
// priority descending, then created_at descending, then item_id descending.
// The id tiebreak keeps the ordering deterministic for rows created within
// the same timestamp granularity, which pagination depends on.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListItemsPage(ctx context.Context, db *gorm.DB, kind domain.Kind, f ItemFilter, offset, limit int) ([]domain.Item, error) {
	var out []domain.Item
	err := f.apply(db.WithContext(ctx).Table(kind.Table())).
		Order("priority DESC, created_at DESC, item_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
