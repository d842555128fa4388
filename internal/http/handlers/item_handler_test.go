package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-actions-backend/internal/domain"
	"github.com/tbourn/go-actions-backend/internal/repo"
	"github.com/tbourn/go-actions-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:item_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.ItemRepo using repo package (like router.go)
type testItemRepo struct{}

func (testItemRepo) CreateItem(ctx context.Context, db *gorm.DB, kind domain.Kind, it *domain.Item) error {
	return repo.CreateItem(ctx, db, kind, it)
}

func (testItemRepo) GetItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) (*domain.Item, error) {
	return repo.GetItem(ctx, db, kind, id)
}

func (testItemRepo) UpdateItemFields(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint, fields map[string]any) error {
	return repo.UpdateItemFields(ctx, db, kind, id, fields)
}

func (testItemRepo) DeleteItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) error {
	return repo.DeleteItem(ctx, db, kind, id)
}

func (testItemRepo) CountItems(ctx context.Context, db *gorm.DB, kind domain.Kind, f repo.ItemFilter) (int64, error) {
	return repo.CountItems(ctx, db, kind, f)
}

func (testItemRepo) ListItemsPage(ctx context.Context, db *gorm.DB, kind domain.Kind, f repo.ItemFilter, offset, limit int) ([]domain.Item, error) {
	return repo.ListItemsPage(ctx, db, kind, f, offset, limit)
}

func (testItemRepo) ItemsStats(ctx context.Context, db *gorm.DB, kind domain.Kind, userID string) (repo.ItemStats, error) {
	return repo.ItemsStats(ctx, db, kind, userID)
}

// ---------- router wiring ----------

func newTestRouter(t *testing.T) (*gin.Engine, *Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	todoSvc := services.NewItemService(db, domain.KindTodo, testItemRepo{})
	fupSvc := services.NewItemService(db, domain.KindFollowup, testItemRepo{})
	h := New(todoSvc, fupSvc, services.NewDispatchService(todoSvc, fupSvc))

	r := gin.New()
	r.POST("/todo", h.CreateTodo)
	r.GET("/todo", h.ListTodos)
	r.GET("/todo/stats", h.TodoStats)
	r.GET("/todo/:id", h.GetTodo)
	r.PUT("/todo/:id", h.UpdateTodo)
	r.DELETE("/todo/:id", h.DeleteTodo)
	r.POST("/followup", h.CreateFollowup)
	r.GET("/followup", h.ListFollowups)
	r.GET("/followup/stats", h.FollowupStats)
	r.GET("/followup/:id", h.GetFollowup)
	r.PUT("/followup/:id", h.UpdateFollowup)
	r.DELETE("/followup/:id", h.DeleteFollowup)
	r.POST("/classifications/webhook", h.DispatchWebhook)
	return r, h
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validCreateBody() map[string]any {
	return map[string]any{
		"user_id":       "u1",
		"source_msg_id": "m1",
		"title":         "Send the report",
		"message_type":  "email",
		"sender":        "alice@example.com",
	}
}

func decodeItem(t *testing.T, w *httptest.ResponseRecorder) domain.Item {
	t.Helper()
	var it domain.Item
	if err := json.Unmarshal(w.Body.Bytes(), &it); err != nil {
		t.Fatalf("decode item: %v (%s)", err, w.Body.String())
	}
	return it
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return e
}

// ---------- create ----------

func TestCreateTodo_DefaultsAndEcho(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/todo", validCreateBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	it := decodeItem(t, w)
	if it.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if it.Status != domain.StatusOpen || it.Priority != 1 {
		t.Fatalf("defaults not applied: %+v", it)
	}
	if it.CreatedAt.IsZero() || !it.CreatedAt.Equal(it.UpdatedAt) {
		t.Fatalf("timestamps: created=%v updated=%v", it.CreatedAt, it.UpdatedAt)
	}
}

func TestCreateTodo_MalformedJSON(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/todo", `{"user_id": "u1",`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestCreateTodo_ValidationFailures(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name  string
		mut   func(m map[string]any)
	}{
		{"missing user_id", func(m map[string]any) { delete(m, "user_id") }},
		{"missing title", func(m map[string]any) { delete(m, "title") }},
		{"bad status", func(m map[string]any) { m["status"] = "archived" }},
		{"bad message_type", func(m map[string]any) { m["message_type"] = "sms" }},
		{"priority too high", func(m map[string]any) { m["priority"] = 6 }},
		{"priority negative", func(m map[string]any) { m["priority"] = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := validCreateBody()
			tc.mut(body)
			w := doJSON(t, r, http.MethodPost, "/todo", body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
			}
			if e := decodeError(t, w); e.Code != ErrCodeValidation {
				t.Fatalf("code = %q", e.Code)
			}
		})
	}
}

// ---------- get ----------

func TestGetTodo_NotFoundAndBadID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/todo/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeNotFound {
		t.Fatalf("code = %q", e.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/todo/abc", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-numeric id, got %d", w.Code)
	}
}

func TestGetTodo_RoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	created := decodeItem(t, doJSON(t, r, http.MethodPost, "/todo", validCreateBody()))
	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/todo/%d", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := decodeItem(t, w)
	if got.ID != created.ID || got.Title != "Send the report" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestKindsAreIsolated(t *testing.T) {
	r, _ := newTestRouter(t)

	created := decodeItem(t, doJSON(t, r, http.MethodPost, "/todo", validCreateBody()))
	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/followup/%d", created.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("todo leaked into followups: %d", w.Code)
	}
}

// ---------- list ----------

func seedTodos(t *testing.T, r *gin.Engine) {
	t.Helper()
	rows := []struct {
		msgID    string
		title    string
		priority int
		status   string
	}{
		{"m1", "high", 5, "open"},
		{"m2", "mid", 3, "open"},
		{"m3", "mid done", 3, "done"},
		{"m4", "low", 1, "open"},
	}
	for _, row := range rows {
		body := validCreateBody()
		body["source_msg_id"] = row.msgID
		body["title"] = row.title
		body["priority"] = row.priority
		body["status"] = row.status
		if w := doJSON(t, r, http.MethodPost, "/todo", body); w.Code != http.StatusCreated {
			t.Fatalf("seed %s: %d %s", row.msgID, w.Code, w.Body.String())
		}
	}
}

func TestListTodos_OrderingAndFilters(t *testing.T) {
	r, _ := newTestRouter(t)
	seedTodos(t, r)

	w := doJSON(t, r, http.MethodGet, "/todo?user_id=u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ListItemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Pagination.Total != 4 || len(resp.Items) != 4 {
		t.Fatalf("expected 4 items, got %+v", resp.Pagination)
	}
	// Equal priority breaks ties by recency, so the later "mid done" row
	// sorts ahead of "mid".
	want := []string{"high", "mid done", "mid", "low"}
	for i, title := range want {
		if resp.Items[i].Title != title {
			t.Fatalf("order[%d] = %q, want %q", i, resp.Items[i].Title, title)
		}
	}

	// status filter
	w = doJSON(t, r, http.MethodGet, "/todo?user_id=u1&status=done", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Pagination.Total != 1 || resp.Items[0].Title != "mid done" {
		t.Fatalf("status filter: %+v", resp)
	}

	// priority is a minimum threshold
	w = doJSON(t, r, http.MethodGet, "/todo?user_id=u1&priority=3", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Pagination.Total != 3 {
		t.Fatalf("priority filter total = %d, want 3", resp.Pagination.Total)
	}
}

func TestListTodos_PaginationEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)
	seedTodos(t, r)

	w := doJSON(t, r, http.MethodGet, "/todo?user_id=u1&page=1&page_size=3", nil)
	var resp ListItemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Items) != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("page 1 envelope: %+v", resp.Pagination)
	}

	w = doJSON(t, r, http.MethodGet, "/todo?user_id=u1&page=2&page_size=3", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Items) != 1 || resp.Pagination.HasNext {
		t.Fatalf("page 2 envelope: %+v", resp.Pagination)
	}
}

func TestListTodos_MissingUserID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/todo", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

// ---------- update ----------

func TestUpdateTodo_Partial(t *testing.T) {
	r, _ := newTestRouter(t)
	created := decodeItem(t, doJSON(t, r, http.MethodPost, "/todo", validCreateBody()))

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/todo/%d", created.ID),
		map[string]any{"status": "done", "priority": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decodeItem(t, w)
	if got.Status != domain.StatusDone || got.Priority != 4 {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.Title != created.Title {
		t.Fatalf("untouched field changed: %q", got.Title)
	}
}

func TestUpdateTodo_UnknownFieldRejected(t *testing.T) {
	r, _ := newTestRouter(t)
	created := decodeItem(t, doJSON(t, r, http.MethodPost, "/todo", validCreateBody()))

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/todo/%d", created.ID),
		map[string]any{"titel": "typo"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown field, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeValidation {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestUpdateTodo_MalformedAndNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/todo/1", `{"status":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/todo/9999", map[string]any{"status": "done"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// ---------- delete ----------

func TestDeleteTodo_ThenGone(t *testing.T) {
	r, _ := newTestRouter(t)
	created := decodeItem(t, doJSON(t, r, http.MethodPost, "/todo", validCreateBody()))

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/todo/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/todo/%d", created.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

// ---------- stats ----------

func TestTodoStats(t *testing.T) {
	r, _ := newTestRouter(t)
	seedTodos(t, r)

	w := doJSON(t, r, http.MethodGet, "/todo/stats?user_id=u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var st repo.ItemStats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Total != 4 || st.Open != 3 || st.Done != 1 {
		t.Fatalf("stats: %+v", st)
	}
	if st.LastUpdated == nil {
		t.Fatalf("expected last_updated")
	}
}
