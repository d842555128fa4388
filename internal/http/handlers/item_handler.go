// Item HTTP handlers.
//
// This file exposes REST endpoints for the two item resources:
//   - POST   /todo        /followup         (create)
//   - GET    /todo/{id}   /followup/{id}    (read)
//   - GET    /todo        /followup         (list, filtered + paginated)
//   - PUT    /todo/{id}   /followup/{id}    (partial update)
//   - DELETE /todo/{id}   /followup/{id}    (delete)
//   - GET    /todo/stats  /followup/stats   (per-status counts)
//
// Todos and follow-ups share one handler implementation; the exported
// per-kind methods only select which service the shared helpers talk to.
// Handlers are transport-thin: they parse input, call application services,
// and translate results into HTTP responses. All field validation lives in
// the service layer and surfaces here as 422 responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-actions-backend/internal/domain"
	"github.com/tbourn/go-actions-backend/internal/repo"
	"github.com/tbourn/go-actions-backend/internal/services"
	"github.com/tbourn/go-actions-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ItemService defines the item lifecycle operations consumed by HTTP
// handlers. One implementation exists per item kind.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ItemService interface {
	// Create validates and persists a new item.
	Create(ctx context.Context, in services.CreateItemInput) (*domain.Item, error)
	// Get returns an item by its store-assigned id.
	Get(ctx context.Context, id uint) (*domain.Item, error)
	// List returns a page of a user's items plus the total count.
	List(ctx context.Context, userID, status string, minPriority, page, pageSize int) ([]domain.Item, int64, error)
	// Update applies a validated partial update and returns the record.
	Update(ctx context.Context, id uint, in services.UpdateItemInput) (*domain.Item, error)
	// Delete removes an item by id.
	Delete(ctx context.Context, id uint) error
	// Stats returns per-status counts for a user.
	Stats(ctx context.Context, userID string) (repo.ItemStats, error)
}

// DispatchService defines the webhook batch operation consumed by the
// classification webhook handler.
type DispatchService interface {
	// Process routes a batch of classified messages to item creations.
	Process(ctx context.Context, userID string, msgs []domain.ClassifiedMessage) *services.BatchResult
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for todos, follow-ups, and the
// classification webhook. It depends on abstract service interfaces to
// keep transport concerns separate from business logic.
type Handlers struct {
	todos      ItemService
	followups  ItemService
	dispatcher DispatchService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(todos, followups ItemService, dispatcher DispatchService) *Handlers {
	return &Handlers{todos: todos, followups: followups, dispatcher: dispatcher}
}

//
// DTOs
//

// CreateItemRequest is the JSON payload for creating a todo or follow-up.
// Field rules (enforced by the service layer): user_id, source_msg_id,
// title, sender, and message_type are required; priority defaults to 1 and
// must lie in [1,5]; status defaults to "open".
type CreateItemRequest struct {
	UserID      string     `json:"user_id"       example:"user123"`
	SourceMsgID string     `json:"source_msg_id" example:"8b5c8c6e-1b2a-4c3d-8e9f-0123456789ab"`
	Title       string     `json:"title"         example:"Send the quarterly report"`
	Status      string     `json:"status"        example:"open"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Priority    int        `json:"priority"      example:"3"`
	MessageType string     `json:"message_type"  example:"email"`
	Sender      string     `json:"sender"        example:"boss@example.com"`
	Subject     *string    `json:"subject,omitempty"`
	ClsID       *string    `json:"cls_id,omitempty"`
}

// UpdateItemRequest is the JSON payload for a partial item update. Absent
// fields are left untouched; unknown fields are rejected with 422.
type UpdateItemRequest struct {
	Title    *string    `json:"title,omitempty"`
	Status   *string    `json:"status,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Priority *int       `json:"priority,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListItemsResponse wraps a page of items and pagination information.
type ListItemsResponse struct {
	Items      []domain.Item `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// itemID parses the :id path parameter. A non-numeric or non-positive id
// is a validation failure (422), keeping the error taxonomy uniform.
func itemID(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "id must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

// mapItemErr translates service errors into HTTP failures.
func mapItemErr(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "item not found")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Shared implementations
//

func (h *Handlers) createItem(c *gin.Context, svc ItemService) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	it, err := svc.Create(c.Request.Context(), services.CreateItemInput{
		UserID:      req.UserID,
		SourceMsgID: req.SourceMsgID,
		Title:       req.Title,
		Status:      req.Status,
		DueAt:       req.DueAt,
		Priority:    req.Priority,
		MessageType: req.MessageType,
		Sender:      req.Sender,
		Subject:     req.Subject,
		ClsID:       req.ClsID,
	})
	if err != nil {
		mapItemErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, it)
}

func (h *Handlers) getItem(c *gin.Context, svc ItemService) {
	id, okID := itemID(c)
	if !okID {
		return
	}
	it, err := svc.Get(c.Request.Context(), id)
	if err != nil {
		mapItemErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, it)
}

func (h *Handlers) listItems(c *gin.Context, svc ItemService) {
	page, pageSize := clampPagination(c)
	userID := strings.TrimSpace(c.Query("user_id"))
	status := strings.TrimSpace(c.Query("status"))
	// The priority query param is a minimum threshold, not an exact match.
	minPriority := utils.AtoiDefault(c.Query("priority"), 0)

	items, total, err := svc.List(c.Request.Context(), userID, status, minPriority, page, pageSize)
	if err != nil {
		mapItemErr(c, err, ErrCodeListFailed)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListItemsResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

func (h *Handlers) updateItem(c *gin.Context, svc ItemService) {
	id, okID := itemID(c)
	if !okID {
		return
	}

	// Strict decoding: a partial update naming a field this API does not
	// recognize is a validation failure, not a silent no-op.
	var req UpdateItemRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		return
	}

	it, err := svc.Update(c.Request.Context(), id, services.UpdateItemInput{
		Title:    req.Title,
		Status:   req.Status,
		DueAt:    req.DueAt,
		Priority: req.Priority,
	})
	if err != nil {
		mapItemErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, it)
}

func (h *Handlers) deleteItem(c *gin.Context, svc ItemService) {
	id, okID := itemID(c)
	if !okID {
		return
	}
	if err := svc.Delete(c.Request.Context(), id); err != nil {
		mapItemErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

func (h *Handlers) itemStats(c *gin.Context, svc ItemService) {
	userID := strings.TrimSpace(c.Query("user_id"))
	st, err := svc.Stats(c.Request.Context(), userID)
	if err != nil {
		mapItemErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}

//
// Todo endpoints
//

// CreateTodo godoc
// @ID          createTodo
// @Summary     Create a todo
// @Description Creates a todo item and returns it with its assigned id.
// @Tags        Todos
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateItemRequest  true  "Create todo payload"
// @Success     201  {object}  domain.Item
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed body"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failure"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /todo [post]
func (h *Handlers) CreateTodo(c *gin.Context) { h.createItem(c, h.todos) }

// GetTodo godoc
// @ID          getTodo
// @Summary     Get a todo by id
// @Tags        Todos
// @Produce     json
// @Param       id  path  int  true  "Todo id"
// @Success     200  {object}  domain.Item
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /todo/{id} [get]
func (h *Handlers) GetTodo(c *gin.Context) { h.getItem(c, h.todos) }

// ListTodos godoc
// @ID          listTodos
// @Summary     List todos (filtered, paginated)
// @Description Returns the user's todos ordered by priority then recency. The priority filter is a minimum threshold.
// @Tags        Todos
// @Produce     json
// @Param       user_id    query  string  true   "Owning user id"
// @Param       status     query  string  false  "Exact status filter (open|done)"
// @Param       priority   query  int     false  "Minimum priority (1-5)"
// @Param       page       query  int     false  "Page number (default 1)"
// @Param       page_size  query  int     false  "Page size (default 20, max 100)"
// @Success     200  {object}  handlers.ListItemsResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failure"
// @Router      /todo [get]
func (h *Handlers) ListTodos(c *gin.Context) { h.listItems(c, h.todos) }

// UpdateTodo godoc
// @ID          updateTodo
// @Summary     Update a todo (partial)
// @Tags        Todos
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "Todo id"
// @Param       body  body  handlers.UpdateItemRequest  true  "Fields to update"
// @Success     200  {object}  domain.Item
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failure"
// @Router      /todo/{id} [put]
func (h *Handlers) UpdateTodo(c *gin.Context) { h.updateItem(c, h.todos) }

// DeleteTodo godoc
// @ID          deleteTodo
// @Summary     Delete a todo
// @Tags        Todos
// @Param       id  path  int  true  "Todo id"
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /todo/{id} [delete]
func (h *Handlers) DeleteTodo(c *gin.Context) { h.deleteItem(c, h.todos) }

// TodoStats godoc
// @ID          todoStats
// @Summary     Per-status todo counts for a user
// @Tags        Todos
// @Produce     json
// @Param       user_id  query  string  true  "Owning user id"
// @Success     200  {object}  repo.ItemStats
// @Router      /todo/stats [get]
func (h *Handlers) TodoStats(c *gin.Context) { h.itemStats(c, h.todos) }

//
// Follow-up endpoints
//

// CreateFollowup godoc
// @ID          createFollowup
// @Summary     Create a follow-up
// @Tags        Followups
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateItemRequest  true  "Create follow-up payload"
// @Success     201  {object}  domain.Item
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed body"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failure"
// @Router      /followup [post]
func (h *Handlers) CreateFollowup(c *gin.Context) { h.createItem(c, h.followups) }

// GetFollowup godoc
// @ID          getFollowup
// @Summary     Get a follow-up by id
// @Tags        Followups
// @Produce     json
// @Param       id  path  int  true  "Follow-up id"
// @Success     200  {object}  domain.Item
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /followup/{id} [get]
func (h *Handlers) GetFollowup(c *gin.Context) { h.getItem(c, h.followups) }

// ListFollowups godoc
// @ID          listFollowups
// @Summary     List follow-ups (filtered, paginated)
// @Tags        Followups
// @Produce     json
// @Param       user_id    query  string  true   "Owning user id"
// @Param       status     query  string  false  "Exact status filter (open|done)"
// @Param       priority   query  int     false  "Minimum priority (1-5)"
// @Param       page       query  int     false  "Page number (default 1)"
// @Param       page_size  query  int     false  "Page size (default 20, max 100)"
// @Success     200  {object}  handlers.ListItemsResponse
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failure"
// @Router      /followup [get]
func (h *Handlers) ListFollowups(c *gin.Context) { h.listItems(c, h.followups) }

// UpdateFollowup godoc
// @ID          updateFollowup
// @Summary     Update a follow-up (partial)
// @Tags        Followups
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "Follow-up id"
// @Param       body  body  handlers.UpdateItemRequest  true  "Fields to update"
// @Success     200  {object}  domain.Item
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failure"
// @Router      /followup/{id} [put]
func (h *Handlers) UpdateFollowup(c *gin.Context) { h.updateItem(c, h.followups) }

// DeleteFollowup godoc
// @ID          deleteFollowup
// @Summary     Delete a follow-up
// @Tags        Followups
// @Param       id  path  int  true  "Follow-up id"
// @Success     204  "Deleted"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /followup/{id} [delete]
func (h *Handlers) DeleteFollowup(c *gin.Context) { h.deleteItem(c, h.followups) }

// FollowupStats godoc
// @ID          followupStats
// @Summary     Per-status follow-up counts for a user
// @Tags        Followups
// @Produce     json
// @Param       user_id  query  string  true  "Owning user id"
// @Success     200  {object}  repo.ItemStats
// @Router      /followup/stats [get]
func (h *Handlers) FollowupStats(c *gin.Context) { h.itemStats(c, h.followups) }
