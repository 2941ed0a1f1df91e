// Package notify turns order status transitions into user-facing
// notifications and delivers them to log and websocket sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Type classifies a notification.
type Type string

const (
	TypeOrderFilled          Type = "ORDER_FILLED"
	TypeOrderPartiallyFilled Type = "ORDER_PARTIALLY_FILLED"
	TypeOrderCancelled       Type = "ORDER_CANCELLED"
	TypeOrderRejected        Type = "ORDER_REJECTED"
	TypeOrderExpired         Type = "ORDER_EXPIRED"
)

// Notification is a rendered, typed user message about an order.
type Notification struct {
	Type      Type              `json:"type"`
	OrderID   string            `json:"orderId"`
	Platform  types.Platform    `json:"platform"`
	Status    types.OrderStatus `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// TypeFor maps an order status to its notification type. Statuses that do
// not notify return false.
func TypeFor(status types.OrderStatus) (Type, bool) {
	switch status {
	case types.OrderStatusFilled:
		return TypeOrderFilled, true
	case types.OrderStatusPartiallyFilled:
		return TypeOrderPartiallyFilled, true
	case types.OrderStatusCancelled:
		return TypeOrderCancelled, true
	case types.OrderStatusRejected:
		return TypeOrderRejected, true
	case types.OrderStatusExpired:
		return TypeOrderExpired, true
	default:
		return "", false
	}
}

// Render builds the notification for update. It returns false when the new
// status does not warrant one.
func Render(update *types.OrderStatusUpdate) (Notification, bool) {
	if update == nil {
		return Notification{}, false
	}
	kind, ok := TypeFor(update.NewStatus)
	if !ok {
		return Notification{}, false
	}

	order := update.Order
	var msg string
	switch kind {
	case TypeOrderFilled:
		msg = fmt.Sprintf("Your %s order %s on %s was filled: %s shares at %s",
			sideLabel(order.Side), update.OrderID, update.Platform, shares(order.SizeFilled), price(order.Price))
	case TypeOrderPartiallyFilled:
		msg = fmt.Sprintf("Your %s order %s on %s was partially filled: %s of %s shares at %s",
			sideLabel(order.Side), update.OrderID, update.Platform,
			shares(order.SizeFilled), shares(order.Size), price(order.Price))
	case TypeOrderCancelled:
		msg = fmt.Sprintf("Your order %s on %s was cancelled", update.OrderID, update.Platform)
		if order.SizeFilled > 0 {
			msg += fmt.Sprintf(" after filling %s of %s shares", shares(order.SizeFilled), shares(order.Size))
		}
	case TypeOrderRejected:
		msg = fmt.Sprintf("Your order %s on %s was rejected", update.OrderID, update.Platform)
	case TypeOrderExpired:
		msg = fmt.Sprintf("Your order %s on %s expired", update.OrderID, update.Platform)
	}

	ts := update.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Notification{
		Type:      kind,
		OrderID:   update.OrderID,
		Platform:  update.Platform,
		Status:    update.NewStatus,
		Message:   msg,
		Timestamp: ts,
	}, true
}

func sideLabel(side types.Side) string {
	if side == types.SideSell {
		return "sell"
	}
	return "buy"
}

func shares(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func price(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("order-notification",
		zap.String("type", string(n.Type)),
		zap.String("order-id", n.OrderID),
		zap.String("platform", string(n.Platform)),
		zap.String("message", n.Message))
	NotificationsSentTotal.WithLabelValues("log", string(n.Type)).Inc()
	return nil
}

// Multi fans a notification out to every notifier. All are attempted; the
// errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
