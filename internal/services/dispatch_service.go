// Package services – DispatchService
//
// This file implements the classification dispatcher: it consumes a batch
// of externally classified messages and routes each one to the matching
// item service ("todo" and "followup" create rows, "noise" is dropped, and
// any unrecognized label is skipped without failing the batch).
//
// The batch is deliberately not transactional. Each message is persisted
// independently, in input order; a failure on one message is captured in
// the result counters and processing continues with the next message, so
// one bad message never blocks the rest of the batch.
//
// Observability: Process is OpenTelemetry-instrumented; the span carries
// the batch size and per-outcome counts.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-actions-backend/internal/domain"
	"github.com/tbourn/go-actions-backend/internal/textproc"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/language"
)

// ItemCreator is the slice of ItemService the dispatcher needs: validated
// creation of one item. Keeping the contract this narrow lets handler and
// dispatcher tests substitute fakes trivially.
type ItemCreator interface {
	Create(ctx context.Context, in CreateItemInput) (*domain.Item, error)
}

// BatchResult accumulates the outcome of one webhook batch: the created
// records per kind (in input order) and counts for everything that did not
// produce a row.
type BatchResult struct {
	// Todos and Followups hold the persisted records for the batch.
	Todos     []domain.Item
	Followups []domain.Item

	// Noise counts messages the classifier marked as not actionable.
	Noise int
	// Ignored counts messages with an unrecognized classification label.
	// Distinct from Noise for observability even though neither creates a row.
	Ignored int
	// Failed counts messages whose persistence was rejected (validation or
	// storage); earlier and later messages are unaffected.
	Failed int
}

// DispatchService maps classified messages onto item creations.
type DispatchService struct {
	// Todos and Followups persist the respective item kinds.
	Todos     ItemCreator
	Followups ItemCreator

	// TitleLocale drives locale-aware capitalization of generated titles.
	TitleLocale language.Tag

	// Now supplies the reference time for due-date extraction; defaults to
	// time.Now when nil.
	Now func() time.Time
}

// NewDispatchService constructs a DispatchService with default locale and clock.
func NewDispatchService(todos, followups ItemCreator) *DispatchService {
	return &DispatchService{
		Todos:       todos,
		Followups:   followups,
		TitleLocale: language.English,
		Now:         time.Now,
	}
}

// Process walks the batch in input order and creates zero or one item per
// message. It always returns a result; per-message failures are isolated
// and reported through the counters, never as an error.
func (s *DispatchService) Process(ctx context.Context, userID string, msgs []domain.ClassifiedMessage) *BatchResult {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("batch.size", len(msgs)),
		),
	)
	defer span.End()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	res := &BatchResult{}
	for i, msg := range msgs {
		switch msg.Classification {
		case domain.ClassificationTodo:
			if it, err := s.createFrom(ctx, userID, msg, false, now()); err != nil {
				res.Failed++
				log.Warn().Err(err).Int("index", i).Str("source_msg_id", msg.ID).Msg("todo creation failed")
			} else {
				res.Todos = append(res.Todos, *it)
			}
		case domain.ClassificationFollowup:
			if it, err := s.createFrom(ctx, userID, msg, true, now()); err != nil {
				res.Failed++
				log.Warn().Err(err).Int("index", i).Str("source_msg_id", msg.ID).Msg("followup creation failed")
			} else {
				res.Followups = append(res.Followups, *it)
			}
		case domain.ClassificationNoise:
			res.Noise++
		default:
			res.Ignored++
			log.Warn().Int("index", i).Str("source_msg_id", msg.ID).
				Str("classification", msg.Classification).Msg("unrecognized classification label, skipping")
		}
	}

	span.SetAttributes(
		attribute.Int("batch.todos", len(res.Todos)),
		attribute.Int("batch.followups", len(res.Followups)),
		attribute.Int("batch.noise", res.Noise),
		attribute.Int("batch.ignored", res.Ignored),
		attribute.Int("batch.failed", res.Failed),
	)
	return res
}

// createFrom builds the creation input for one message and delegates to
// the kind's item service. Priority passes through untouched: range
// enforcement is the item service's job, not the dispatcher's.
func (s *DispatchService) createFrom(ctx context.Context, userID string, msg domain.ClassifiedMessage, followup bool, now time.Time) (*domain.Item, error) {
	in := CreateItemInput{
		UserID:      userID,
		SourceMsgID: msg.ID,
		Title:       s.buildTitle(msg, followup),
		Status:      domain.StatusOpen,
		DueAt:       textproc.ExtractDueDate(msg.Task, now),
		Priority:    msg.Priority,
		MessageType: msg.Type,
		Sender:      msg.Sender,
		Subject:     msg.Subject,
		ClsID:       msg.ClsID,
	}
	if followup {
		return s.Followups.Create(ctx, in)
	}
	return s.Todos.Create(ctx, in)
}

// buildTitle derives the item title: cleaned task text when present, then
// the subject line, then a placeholder naming the sender so the row stays
// identifiable through source_msg_id/sender.
func (s *DispatchService) buildTitle(msg domain.ClassifiedMessage, followup bool) string {
	if t := textproc.CleanTitle(msg.Task, followup, s.TitleLocale); t != "" {
		return t
	}
	if msg.Subject != nil {
		if t := textproc.CleanTitle(*msg.Subject, followup, s.TitleLocale); t != "" {
			return t
		}
	}
	return "Message from " + strings.TrimSpace(msg.Sender)
}
