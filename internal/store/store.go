package store

import (
	"context"
	"time"
)

// Kind classifies a recorded notification event.
type Kind string

const (
	KindRemind   Kind = "remind"
	KindAutoStop Kind = "auto-stop"
	KindMissed   Kind = "missed"
)

// Notification is one delivered (or attempted) notification event.
type Notification struct {
	ID        string
	FiredAt   time.Time
	Kind      Kind
	Project   string
	SessionID *int
	Title     string
	Message   string
	Delivered bool
}

// Store defines the notification history persistence interface.
type Store interface {
	RecordNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, limit int) ([]*Notification, error)

	Migrate(ctx context.Context) error
	Close() error
}
