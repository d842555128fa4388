// Package domain defines the persistence models for actionable items
// (todos and follow-ups) and the transient webhook input types. The
// persisted types are mapped with GORM and form the core data layer of
// the actions service.
package domain

import "time"

// Item status values.
const (
	StatusOpen = "open"
	StatusDone = "done"
)

// Message origin types.
const (
	MessageTypeEmail = "email"
	MessageTypeSlack = "slack"
)

// Kind discriminates the two persisted item tables. Todos and follow-ups
// share an identical row shape and lifecycle; the kind only selects the
// storage table and the semantic label.
type Kind string

const (
	// KindTodo is an actionable item the user has to do themselves.
	KindTodo Kind = "todo"
	// KindFollowup is an item that needs a reply or follow-up action.
	KindFollowup Kind = "followup"
)

// Table returns the database table name backing the kind.
func (k Kind) Table() string {
	switch k {
	case KindFollowup:
		return "followups"
	default:
		return "todos"
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }

// Item represents a persisted actionable record. The same struct backs
// both the todos and followups tables; repository functions scope every
// query to a Kind's table, so the struct intentionally has no TableName.
//
// Fields:
//   - ID: integer primary key assigned by the store on creation,
//     immutable and never reused.
//   - UserID: opaque identifier of the owning user; indexed.
//   - SourceMsgID: identifier of the originating message. Required but
//     not unique: re-processing a message creates a second row.
//   - Title: non-empty, capped at 255 characters.
//   - Status: "open" or "done"; defaults to open at creation.
//   - DueAt: optional due timestamp.
//   - Priority: 1 (lowest) to 5 (highest); defaults to 1.
//   - MessageType: "email" or "slack".
//   - Sender / Subject: message metadata carried onto the item.
//   - ClsID: optional back-reference to the classification record that
//     produced this item.
//   - CreatedAt / UpdatedAt: store-managed; UpdatedAt is refreshed on
//     every mutation and equals CreatedAt right after insert.
//
// Rows are hard-deleted; there is no soft-delete marker.
type Item struct {
	ID          uint       `json:"item_id"           gorm:"column:item_id;primaryKey;autoIncrement"`
	UserID      string     `json:"user_id"           gorm:"type:varchar(64);not null;index"`
	SourceMsgID string     `json:"source_msg_id"     gorm:"type:varchar(64);not null;index"`
	Title       string     `json:"title"             gorm:"type:varchar(255);not null"`
	Status      string     `json:"status"            gorm:"type:varchar(8);not null;default:'open';check:status IN ('open','done');index"`
	DueAt       *time.Time `json:"due_at,omitempty"  gorm:"index"`
	Priority    int        `json:"priority"          gorm:"not null;default:1;check:priority BETWEEN 1 AND 5;index"`
	MessageType string     `json:"message_type"      gorm:"type:varchar(8);not null;check:message_type IN ('email','slack')"`
	Sender      string     `json:"sender"            gorm:"type:varchar(255);not null"`
	Subject     *string    `json:"subject,omitempty" gorm:"type:varchar(255)"`
	ClsID       *string    `json:"cls_id,omitempty"  gorm:"type:varchar(64)"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ValidStatus reports whether s is a recognized item status.
func ValidStatus(s string) bool { return s == StatusOpen || s == StatusDone }

// ValidMessageType reports whether t is a recognized message origin.
func ValidMessageType(t string) bool { return t == MessageTypeEmail || t == MessageTypeSlack }
