// Classification webhook handler.
//
// This file exposes the ingestion endpoint called by the upstream message
// classifier:
//   - POST /classifications/webhook?user_id=...   (dispatch a classified batch)
//
// The handler is transport-thin: it validates the envelope (user id present,
// body well-formed, batch non-empty), delegates routing to DispatchService,
// and reports per-kind creation counts. Individual item failures never fail
// the batch; the endpoint answers 200 once the batch has been processed.
//
// Redelivery:
// If the webhook producer supplies an Idempotency-Key header and a receipt
// exists for (user, route, key), the response carries
// `Idempotency-Replayed: true` so consumers can spot duplicate deliveries.
// The batch is still processed; rows are never deduplicated by source
// message id.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-actions-backend/internal/domain"
	"github.com/tbourn/go-actions-backend/internal/repo"
	"github.com/tbourn/go-actions-backend/internal/services"
)

// webhookScope identifies the webhook route in receipt records.
const webhookScope = "/classifications/webhook"

// receiptTTL bounds how long a delivery receipt can flag redeliveries.
const receiptTTL = 24 * time.Hour

// CreatedCounts summarizes how many items each kind gained from a batch.
// Tasks is reserved for a classifier label this service does not persist;
// it is always zero.
type CreatedCounts struct {
	TasksCount     int `json:"tasks_count"`
	TodosCount     int `json:"todos_count"`
	FollowupsCount int `json:"followups_count"`
}

// CreatedItems groups the persisted rows by kind, in input order.
// Tasks mirrors CreatedCounts.TasksCount and is always empty.
type CreatedItems struct {
	Tasks     []domain.Item `json:"tasks"`
	Todos     []domain.Item `json:"todos"`
	Followups []domain.Item `json:"followups"`
}

// WebhookResponse is the JSON envelope returned after a batch is processed.
type WebhookResponse struct {
	Message string        `json:"message"`
	Created CreatedCounts `json:"created"`
	Items   CreatedItems  `json:"items"`
}

// DispatchWebhook godoc
// @ID          dispatchWebhook
// @Summary     Ingest a batch of classified messages
// @Description Routes each classified message to the matching item table (todo or followup).
// @Description Noise and unrecognized labels are skipped; a failing item does not abort the batch.
// @Description Redeliveries carrying the same Idempotency-Key are flagged via the Idempotency-Replayed header.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       user_id          query   string  true   "Owning user id"  example(user123)
// @Param       Idempotency-Key  header  string  false  "Delivery key for redelivery detection (UUID recommended)"
// @Param       body             body    []domain.ClassifiedMessage  true  "Classified message batch"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed or empty batch"
// @Failure     422  {object}  handlers.ErrorResponse  "Missing user_id"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /classifications/webhook [post]
func (h *Handlers) DispatchWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "user_id query parameter is required")
		return
	}

	var batch []domain.ClassifiedMessage
	if err := c.ShouldBindJSON(&batch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if len(batch) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no messages provided")
		return
	}

	// Redelivery flagging (best effort) – never blocks processing.
	idemKey, _ := deliveryKey(c)
	if idemKey != "" {
		if db := h.receiptDB(); db != nil {
			if rec, err := repo.GetReceipt(ctx, db, userID, webhookScope, idemKey, time.Now().UTC()); err == nil && rec != nil {
				c.Header("Idempotency-Replayed", "true")
			}
		}
	}

	res := h.dispatcher.Process(ctx, userID, batch)
	if res == nil {
		fail(c, http.StatusInternalServerError, ErrCodeDispatchFailed, "dispatch produced no result")
		return
	}

	// Record the delivery (best effort). Duplicates are expected on retries.
	if idemKey != "" {
		if db := h.receiptDB(); db != nil {
			_, _ = repo.CreateReceipt(ctx, db, userID, webhookScope, idemKey, receiptTTL)
		}
	}

	todos := res.Todos
	if todos == nil {
		todos = []domain.Item{}
	}
	followups := res.Followups
	if followups == nil {
		followups = []domain.Item{}
	}

	ok(c, http.StatusOK, WebhookResponse{
		Message: "Batch processed",
		Created: CreatedCounts{
			TasksCount:     0,
			TodosCount:     len(todos),
			FollowupsCount: len(followups),
		},
		Items: CreatedItems{
			Tasks:     []domain.Item{},
			Todos:     todos,
			Followups: followups,
		},
	})
}

// deliveryKey extracts the webhook delivery key if an upstream middleware has
// already validated/stashed it. The fallback reads the "Idempotency-Key"
// header directly when no dedicated middleware is installed.
func deliveryKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

// receiptDB reaches the underlying *gorm.DB through the concrete item
// service when available. Handlers built on stub services simply skip
// receipt bookkeeping.
func (h *Handlers) receiptDB() *gorm.DB {
	if svc, ok := h.todos.(*services.ItemService); ok && svc.DB != nil {
		return svc.DB
	}
	return nil
}
