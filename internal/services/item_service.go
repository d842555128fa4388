// Package services – ItemService
//
// This file implements the ItemService, which owns validation and CRUD for
// one persisted item kind. Todos and follow-ups behave identically, so the
// service is written once and instantiated per kind; the Kind field selects
// the storage table through the repository layer.
//
// Validation happens here, before anything touches storage: enum membership
// for status and message type, the [1,5] priority range, and the non-empty /
// length rules for title and sender. Service-level errors (ErrValidation,
// ErrItemNotFound) are returned for predictable cases so handlers can map
// them to HTTP results consistently; storage failures propagate unchanged
// and are never retried here.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-actions-backend/internal/domain"
	"github.com/tbourn/go-actions-backend/internal/repo"
)

// maxFieldRunes caps title, sender, and subject lengths.
const maxFieldRunes = 255

// ItemRepo defines the repository contract required by ItemService.
// Implementations are responsible for persistence of item rows in the
// table selected by the kind argument.
type ItemRepo interface {
	// CreateItem inserts a new item row; the store assigns its id.
	CreateItem(ctx context.Context, db *gorm.DB, kind domain.Kind, it *domain.Item) error

	// GetItem fetches an item by id, or repo.ErrNotFound.
	GetItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) (*domain.Item, error)

	// UpdateItemFields applies a partial column update and refreshes updated_at.
	UpdateItemFields(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint, fields map[string]any) error

	// DeleteItem hard-deletes an item by id.
	DeleteItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) error

	// CountItems returns the total matching the filter, for pagination.
	CountItems(ctx context.Context, db *gorm.DB, kind domain.Kind, f repo.ItemFilter) (int64, error)

	// ListItemsPage returns a page of items matching the filter.
	ListItemsPage(ctx context.Context, db *gorm.DB, kind domain.Kind, f repo.ItemFilter, offset, limit int) ([]domain.Item, error)

	// ItemsStats returns per-status aggregate counts for a user.
	ItemsStats(ctx context.Context, db *gorm.DB, kind domain.Kind, userID string) (repo.ItemStats, error)
}

// ItemService provides item-level operations (create, read, filtered and
// paginated listing, partial update, delete) for a single kind.
type ItemService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Kind selects the item table this instance operates on.
	Kind domain.Kind
	// Repo is the item repository used by this service.
	Repo ItemRepo
}

// NewItemService constructs an ItemService bound to one item kind.
func NewItemService(db *gorm.DB, kind domain.Kind, r ItemRepo) *ItemService {
	return &ItemService{DB: db, Kind: kind, Repo: r}
}

// CreateItemInput carries the caller-supplied fields for item creation.
// Zero values for Status and Priority select the documented defaults
// (open, 1); everything else is validated as-is.
type CreateItemInput struct {
	UserID      string
	SourceMsgID string
	Title       string
	Status      string
	DueAt       *time.Time
	Priority    int
	MessageType string
	Sender      string
	Subject     *string
	ClsID       *string
}

// UpdateItemInput carries a partial update; nil fields are left untouched.
type UpdateItemInput struct {
	Title    *string
	Status   *string
	DueAt    *time.Time
	Priority *int
}

// Create validates the input and persists a new item. On any validation
// failure it returns an ErrValidation-wrapped error naming the field and
// never touches storage.
func (s *ItemService) Create(ctx context.Context, in CreateItemInput) (*domain.Item, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, invalidf("user_id is required")
	}
	if strings.TrimSpace(in.SourceMsgID) == "" {
		return nil, invalidf("source_msg_id is required")
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateSender(in.Sender); err != nil {
		return nil, err
	}
	if in.Subject != nil && utf8.RuneCountInString(*in.Subject) > maxFieldRunes {
		return nil, invalidf("subject must be at most %d characters", maxFieldRunes)
	}

	status := in.Status
	if status == "" {
		status = domain.StatusOpen
	}
	if !domain.ValidStatus(status) {
		return nil, invalidf("status must be %q or %q", domain.StatusOpen, domain.StatusDone)
	}
	if !domain.ValidMessageType(in.MessageType) {
		return nil, invalidf("message_type must be %q or %q", domain.MessageTypeEmail, domain.MessageTypeSlack)
	}

	priority := in.Priority
	if priority == 0 {
		priority = 1
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}

	it := &domain.Item{
		UserID:      in.UserID,
		SourceMsgID: in.SourceMsgID,
		Title:       strings.TrimSpace(in.Title),
		Status:      status,
		DueAt:       in.DueAt,
		Priority:    priority,
		MessageType: in.MessageType,
		Sender:      strings.TrimSpace(in.Sender),
		Subject:     in.Subject,
		ClsID:       in.ClsID,
	}
	if err := s.Repo.CreateItem(ctx, s.DB, s.Kind, it); err != nil {
		return nil, err
	}
	return it, nil
}

// Get returns the item with the given id, or ErrItemNotFound.
func (s *ItemService) Get(ctx context.Context, id uint) (*domain.Item, error) {
	it, err := s.Repo.GetItem(ctx, s.DB, s.Kind, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return it, nil
}

// List returns a page of the user's items plus the total count. The
// optional status filter must be an exact status value and minPriority is
// a lower bound; invalid filter values are validation errors. Page and
// pageSize get defaults when out of range.
func (s *ItemService) List(ctx context.Context, userID, status string, minPriority, page, pageSize int) ([]domain.Item, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, invalidf("user_id is required")
	}
	if status != "" && !domain.ValidStatus(status) {
		return nil, 0, invalidf("status must be %q or %q", domain.StatusOpen, domain.StatusDone)
	}
	if minPriority != 0 {
		if err := validatePriority(minPriority); err != nil {
			return nil, 0, err
		}
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	f := repo.ItemFilter{UserID: userID, Status: status, MinPriority: minPriority}
	total, err := s.Repo.CountItems(ctx, s.DB, s.Kind, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Item{}, 0, nil
	}

	items, err := s.Repo.ListItemsPage(ctx, s.DB, s.Kind, f, offset, pageSize)
	return items, total, err
}

// Update applies a partial update after re-validating every touched field
// the same way Create does, then returns the updated record.
func (s *ItemService) Update(ctx context.Context, id uint, in UpdateItemInput) (*domain.Item, error) {
	fields := map[string]any{}
	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
		fields["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Status != nil {
		if !domain.ValidStatus(*in.Status) {
			return nil, invalidf("status must be %q or %q", domain.StatusOpen, domain.StatusDone)
		}
		fields["status"] = *in.Status
	}
	if in.DueAt != nil {
		fields["due_at"] = *in.DueAt
	}
	if in.Priority != nil {
		if err := validatePriority(*in.Priority); err != nil {
			return nil, err
		}
		fields["priority"] = *in.Priority
	}

	if err := s.Repo.UpdateItemFields(ctx, s.DB, s.Kind, id, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the item, returning ErrItemNotFound when there is no row
// to remove (including a repeated delete of the same id).
func (s *ItemService) Delete(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteItem(ctx, s.DB, s.Kind, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

// Stats returns per-status counts of the user's items of this kind.
func (s *ItemService) Stats(ctx context.Context, userID string) (repo.ItemStats, error) {
	if strings.TrimSpace(userID) == "" {
		return repo.ItemStats{}, invalidf("user_id is required")
	}
	return s.Repo.ItemsStats(ctx, s.DB, s.Kind, userID)
}

// validateTitle enforces the non-empty / max-length title rule.
func validateTitle(title string) error {
	t := strings.TrimSpace(title)
	if t == "" {
		return invalidf("title must not be empty")
	}
	if utf8.RuneCountInString(t) > maxFieldRunes {
		return invalidf("title must be at most %d characters", maxFieldRunes)
	}
	return nil
}

// validateSender enforces the non-empty / max-length sender rule.
func validateSender(sender string) error {
	s := strings.TrimSpace(sender)
	if s == "" {
		return invalidf("sender must not be empty")
	}
	if utf8.RuneCountInString(s) > maxFieldRunes {
		return invalidf("sender must be at most %d characters", maxFieldRunes)
	}
	return nil
}

// validatePriority enforces the inclusive [1,5] priority range.
func validatePriority(p int) error {
	if p < 1 || p > 5 {
		return invalidf("priority must be between 1 and 5")
	}
	return nil
}
