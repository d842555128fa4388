// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-actions-backend/internal/config"
	"github.com/tbourn/go-actions-backend/internal/domain"
	"github.com/tbourn/go-actions-backend/internal/http/handlers"
	"github.com/tbourn/go-actions-backend/internal/http/middleware"
	"github.com/tbourn/go-actions-backend/internal/repo"
	"github.com/tbourn/go-actions-backend/internal/services"
)

// itemRepoShim adapts the repository free functions to the services.ItemRepo
// interface expected by the ItemService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type itemRepoShim struct{}

// CreateItem proxies repo.CreateItem.
func (itemRepoShim) CreateItem(ctx context.Context, db *gorm.DB, kind domain.Kind, it *domain.Item) error {
	return repo.CreateItem(ctx, db, kind, it)
}

// GetItem proxies repo.GetItem.
func (itemRepoShim) GetItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) (*domain.Item, error) {
	return repo.GetItem(ctx, db, kind, id)
}

// UpdateItemFields proxies repo.UpdateItemFields.
func (itemRepoShim) UpdateItemFields(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint, fields map[string]any) error {
	return repo.UpdateItemFields(ctx, db, kind, id, fields)
}

// DeleteItem proxies repo.DeleteItem.
func (itemRepoShim) DeleteItem(ctx context.Context, db *gorm.DB, kind domain.Kind, id uint) error {
	return repo.DeleteItem(ctx, db, kind, id)
}

// CountItems proxies repo.CountItems (pagination support).
func (itemRepoShim) CountItems(ctx context.Context, db *gorm.DB, kind domain.Kind, f repo.ItemFilter) (int64, error) {
	return repo.CountItems(ctx, db, kind, f)
}

// ListItemsPage proxies repo.ListItemsPage (pagination support).
func (itemRepoShim) ListItemsPage(ctx context.Context, db *gorm.DB, kind domain.Kind, f repo.ItemFilter, offset, limit int) ([]domain.Item, error) {
	return repo.ListItemsPage(ctx, db, kind, f, offset, limit)
}

// ItemsStats proxies repo.ItemsStats.
func (itemRepoShim) ItemsStats(ctx context.Context, db *gorm.DB, kind domain.Kind, userID string) (repo.ItemStats, error) {
	return repo.ItemsStats(ctx, db, kind, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API (item CRUD plus the classification webhook) under the
// configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers, response compression
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetReceipt(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compress JSON responses (list endpoints benefit most)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	todoSvc := services.NewItemService(db, domain.KindTodo, itemRepoShim{})
	fupSvc := services.NewItemService(db, domain.KindFollowup, itemRepoShim{})
	dispatcher := services.NewDispatchService(todoSvc, fupSvc)
	dispatcher.TitleLocale = language.English

	h := handlers.New(todoSvc, fupSvc, dispatcher)

	// Public API
	apiBase := cfg.APIBasePath // "/" by default
	api := groupWithPrefix(r, apiBase)
	{
		// Todos
		api.POST("/todo", h.CreateTodo)
		api.GET("/todo", h.ListTodos)
		api.GET("/todo/stats", h.TodoStats)
		api.GET("/todo/:id", h.GetTodo)
		api.PUT("/todo/:id", h.UpdateTodo)
		api.DELETE("/todo/:id", h.DeleteTodo)

		// Follow-ups
		api.POST("/followup", h.CreateFollowup)
		api.GET("/followup", h.ListFollowups)
		api.GET("/followup/stats", h.FollowupStats)
		api.GET("/followup/:id", h.GetFollowup)
		api.PUT("/followup/:id", h.UpdateFollowup)
		api.DELETE("/followup/:id", h.DeleteFollowup)

		// Classification webhook
		api.POST("/classifications/webhook", h.DispatchWebhook)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
