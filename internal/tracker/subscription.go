package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
)

// StatusUpdateListener receives one update per detected transition.
type StatusUpdateListener func(update types.OrderStatusUpdate)

// ErrorListener receives polling failures. Polling continues afterwards.
type ErrorListener func(err error)

// TrackOptions tunes one subscription. Zero values fall back to the
// tracker defaults; StopOnTerminal defaults to true.
type TrackOptions struct {
	PollingInterval time.Duration
	Timeout         time.Duration
	StopOnTerminal  *bool
}

// SubscriptionInfo is a read-only snapshot of a subscription.
type SubscriptionInfo struct {
	ID              string            `json:"id"`
	Platform        types.Platform    `json:"platform"`
	OrderID         string            `json:"orderId"`
	PollingInterval time.Duration     `json:"pollingInterval"`
	Timeout         time.Duration     `json:"timeout"`
	StopOnTerminal  bool              `json:"stopOnTerminal"`
	Active          bool              `json:"active"`
	CreatedAt       time.Time         `json:"createdAt"`
	LastStatus      types.OrderStatus `json:"lastStatus,omitempty"`
	LastPolledAt    *time.Time        `json:"lastPolledAt,omitempty"`
}

type statusListener struct {
	id uint64
	fn StatusUpdateListener
}

type errorListener struct {
	id uint64
	fn ErrorListener
}

// Subscription is a caller's handle on one tracked order. Listeners may be
// registered at any time and take effect from the next poll. Listeners run
// on the subscription's polling goroutine and must not block indefinitely.
type Subscription struct {
	id              string
	platform        types.Platform
	orderID         string
	pollingInterval time.Duration
	timeout         time.Duration
	stopOnTerminal  bool
	createdAt       time.Time

	tracker *Tracker
	ctx     context.Context
	cancel  context.CancelFunc

	mu             sync.Mutex
	nextListenerID uint64
	statusFns      []statusListener
	errorFns       []errorListener
	lastStatus     types.OrderStatus
	lastOrder      *types.Order
	lastPolledAt   time.Time
}

// ID returns the subscription ID.
func (s *Subscription) ID() string { return s.id }

// OrderID returns the tracked order ID.
func (s *Subscription) OrderID() string { return s.orderID }

// Platform returns the tracked order's venue.
func (s *Subscription) Platform() types.Platform { return s.platform }

// Done is closed once the subscription stops for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.ctx.Done() }

// Active reports whether the subscription is still polling.
func (s *Subscription) Active() bool { return s.ctx.Err() == nil }

// OnStatusUpdate registers fn and returns a function that removes it.
func (s *Subscription) OnStatusUpdate(fn StatusUpdateListener) func() {
	s.mu.Lock()
	s.nextListenerID++
	id := s.nextListenerID
	s.statusFns = append(s.statusFns, statusListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.statusFns {
			if l.id == id {
				s.statusFns = append(s.statusFns[:i:i], s.statusFns[i+1:]...)
				return
			}
		}
	}
}

// OnError registers fn and returns a function that removes it.
func (s *Subscription) OnError(fn ErrorListener) func() {
	s.mu.Lock()
	s.nextListenerID++
	id := s.nextListenerID
	s.errorFns = append(s.errorFns, errorListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.errorFns {
			if l.id == id {
				s.errorFns = append(s.errorFns[:i:i], s.errorFns[i+1:]...)
				return
			}
		}
	}
}

// Stop ends the subscription. It is equivalent to Tracker.StopTracking.
func (s *Subscription) Stop() {
	s.tracker.StopTracking(s.id)
}

// Info returns a snapshot of the subscription.
func (s *Subscription) Info() SubscriptionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SubscriptionInfo{
		ID:              s.id,
		Platform:        s.platform,
		OrderID:         s.orderID,
		PollingInterval: s.pollingInterval,
		Timeout:         s.timeout,
		StopOnTerminal:  s.stopOnTerminal,
		Active:          s.ctx.Err() == nil,
		CreatedAt:       s.createdAt,
		LastStatus:      s.lastStatus,
	}
	if !s.lastPolledAt.IsZero() {
		t := s.lastPolledAt
		info.LastPolledAt = &t
	}
	return info
}

// observe records a fetched order and returns the previous status and
// whether the status changed.
func (s *Subscription) observe(order *types.Order, now time.Time) (types.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.lastStatus
	hadStatus := s.lastOrder != nil

	snapshot := *order
	s.lastOrder = &snapshot
	s.lastStatus = order.Status
	s.lastPolledAt = now

	return previous, !hadStatus || previous != order.Status
}

func (s *Subscription) clearCache() {
	s.mu.Lock()
	s.lastOrder = nil
	s.lastStatus = ""
	s.mu.Unlock()
}

func (s *Subscription) statusListeners() []StatusUpdateListener {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StatusUpdateListener, len(s.statusFns))
	for i, l := range s.statusFns {
		out[i] = l.fn
	}
	return out
}

func (s *Subscription) errorListeners() []ErrorListener {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ErrorListener, len(s.errorFns))
	for i, l := range s.errorFns {
		out[i] = l.fn
	}
	return out
}
