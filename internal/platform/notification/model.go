// Package notification stores per-user inbox notifications, renders the
// appointment lifecycle messages, and dispatches them off the request path.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification for the client inbox.
type Type string

const (
	TypeAppointment Type = "appointment"
	TypeReminder    Type = "reminder"
	TypeTreatment   Type = "treatment"
	TypePayment     Type = "payment"
	TypeGeneral     Type = "general"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAppointment, TypeReminder, TypeTreatment, TypePayment, TypeGeneral:
		return true
	}
	return false
}

var ErrNotFound = errors.New("notification not found")

// Notification is one inbox entry for a user.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"userId"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      Type                   `json:"type"`
	IsRead    bool                   `json:"isRead"`
	Data      map[string]interface{} `json:"data,omitempty"`
	LinkTo    string                 `json:"linkTo,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ListFilter selects a page of a user's inbox.
type ListFilter struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Limit      int
	Offset     int
}

type Store interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, f ListFilter) ([]*Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkRead marks one notification read. Only the owner's notifications
	// match; anything else is ErrNotFound.
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// Publisher forwards stored notifications to an external channel.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}
