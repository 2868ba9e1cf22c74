package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one line of the order's audit trail.
type HistoryEntry struct {
	Date    time.Time
	Content string
	UserID  *uuid.UUID
}

// Note is free-form commentary attached to an order, optionally visible to
// the customer.
type Note struct {
	Date     time.Time
	Content  string
	IsPublic bool
	UserID   *uuid.UUID
}
