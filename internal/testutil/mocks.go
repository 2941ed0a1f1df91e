package testutil

import (
	"context"
	"sync"

	"github.com/mselser95/polybridge/internal/notify"
	"github.com/mselser95/polybridge/internal/storage"
	"github.com/mselser95/polybridge/pkg/types"
)

// MockOrderSource serves a scripted sequence of order snapshots. Each
// GetOrder call advances one step; the last step repeats.
type MockOrderSource struct {
	mu        sync.Mutex
	steps     []MockOrderStep
	calls     int
	trades    []types.Trade
	tradesErr error
	tradeCall int
}

// MockOrderStep is one GetOrder response. A nil Order with nil Err means
// not found.
type MockOrderStep struct {
	Order *types.Order
	Err   error
}

// NewMockOrderSource creates a source that walks steps.
func NewMockOrderSource(steps ...MockOrderStep) *MockOrderSource {
	return &MockOrderSource{steps: steps}
}

// NewMockOrderSourceStatuses creates a source whose order moves through
// statuses.
func NewMockOrderSourceStatuses(orderID string, platform types.Platform, statuses ...types.OrderStatus) *MockOrderSource {
	steps := make([]MockOrderStep, len(statuses))
	for i, status := range statuses {
		steps[i] = MockOrderStep{Order: CreateTestOrder(orderID, platform, status)}
	}
	return NewMockOrderSource(steps...)
}

// SetTrades sets the GetTrades response.
func (m *MockOrderSource) SetTrades(trades []types.Trade, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = trades
	m.tradesErr = err
}

// GetOrder returns the current step.
func (m *MockOrderSource) GetOrder(_ context.Context, _ string) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.steps) == 0 {
		m.calls++
		return nil, nil
	}

	idx := m.calls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	m.calls++

	step := m.steps[idx]
	if step.Order == nil {
		return nil, step.Err
	}
	order := *step.Order
	return &order, step.Err
}

// GetTrades returns the configured trades.
func (m *MockOrderSource) GetTrades(_ context.Context, _ types.TradeFilter) ([]types.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradeCall++
	return m.trades, m.tradesErr
}

// Calls returns the number of GetOrder calls.
func (m *MockOrderSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// TradeCalls returns the number of GetTrades calls.
func (m *MockOrderSource) TradeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tradeCall
}

// MockStatusLog records status changes.
type MockStatusLog struct {
	mu      sync.Mutex
	changes []storage.StatusChange
	err     error
}

// NewMockStatusLog creates a status log that returns err after recording.
func NewMockStatusLog(err error) *MockStatusLog {
	return &MockStatusLog{err: err}
}

// LogStatusChange records change.
func (m *MockStatusLog) LogStatusChange(_ context.Context, change storage.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
	return m.err
}

// Changes returns a copy of the recorded changes.
func (m *MockStatusLog) Changes() []storage.StatusChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.StatusChange(nil), m.changes...)
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notify.Notification
	err           error
}

// NewMockNotifier creates a notifier that returns err after recording.
func NewMockNotifier(err error) *MockNotifier {
	return &MockNotifier{err: err}
}

// Notify records n.
func (m *MockNotifier) Notify(_ context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return m.err
}

// Notifications returns a copy of the recorded notifications.
func (m *MockNotifier) Notifications() []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Notification(nil), m.notifications...)
}
