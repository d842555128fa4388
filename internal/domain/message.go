// Package domain defines the persistence models and webhook input types
// for the actions service. This file contains the transient (never
// persisted) shapes produced by the upstream classification service.
package domain

// Classification labels attached to incoming messages by the upstream
// classifier. Labels outside this set are possible and are skipped by the
// dispatcher without failing the batch.
const (
	ClassificationTodo     = "todo"
	ClassificationFollowup = "followup"
	ClassificationNoise    = "noise"
)

// ClassifiedMessage is the webhook's input unit: one message that the
// upstream classification service has already labeled. It is consumed by
// the dispatcher and never stored as-is.
//
// Priority is mapped directly into the created item and is validated at
// the item-service boundary, not here.
type ClassifiedMessage struct {
	// ID is the source message identifier from the integrations service.
	ID string `json:"id"`
	// Type is the message origin ("email" or "slack").
	Type string `json:"type"`
	// Subject is the optional message subject line.
	Subject *string `json:"subject,omitempty"`
	// Sender is the message author.
	Sender string `json:"sender"`
	// Classification is the upstream label ("todo", "followup", "noise",
	// or anything else, which the dispatcher ignores).
	Classification string `json:"classification"`
	// Task is the free-text action extracted by the classifier; used as
	// the created item's title after cleaning.
	Task string `json:"task"`
	// Priority is the classifier-assigned urgency, expected in [1,5].
	Priority int `json:"priority"`
	// ClsID optionally links back to the classification record.
	ClsID *string `json:"cls_id,omitempty"`
}
