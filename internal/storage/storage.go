// Package storage records order status transitions and finished execution
// runs. Writers are best-effort: callers log and swallow their errors.
package storage

import (
	"context"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
)

// StatusChange is one detected order status transition.
type StatusChange struct {
	OrderID        string
	Platform       types.Platform
	PreviousStatus types.OrderStatus
	NewStatus      types.OrderStatus
	Order          types.Order
	FillCount      int
	Timestamp      time.Time
}

// NewStatusChange builds a StatusChange from a tracker update.
func NewStatusChange(update *types.OrderStatusUpdate) StatusChange {
	return StatusChange{
		OrderID:        update.OrderID,
		Platform:       update.Platform,
		PreviousStatus: update.PreviousStatus,
		NewStatus:      update.NewStatus,
		Order:          update.Order,
		FillCount:      len(update.Fills),
		Timestamp:      update.Timestamp,
	}
}

// StatusLogger persists order status transitions.
type StatusLogger interface {
	LogStatusChange(ctx context.Context, change StatusChange) error
}

// ExecutionArchive persists execution runs once they finish or fail.
type ExecutionArchive interface {
	ArchiveRun(ctx context.Context, run *types.ExecutionRun) error
}

// Storage is the full logging collaborator.
type Storage interface {
	StatusLogger
	ExecutionArchive

	// Close closes the storage connection.
	Close() error
}
