// Package tracker polls venue orders and fans out status transitions to
// subscribers, the status log and the notifier.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/polybridge/internal/notify"
	"github.com/mselser95/polybridge/internal/platform"
	"github.com/mselser95/polybridge/internal/storage"
	"github.com/mselser95/polybridge/pkg/cache"
	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

const (
	DefaultMaxSubscriptions = 100
	DefaultPollingInterval  = 2 * time.Second
	DefaultTimeout          = time.Hour
	DefaultRequestTimeout   = 10 * time.Second
	sideEffectTimeout       = 5 * time.Second
)

// ErrTrackerShutdown is returned by TrackOrder after Shutdown.
var ErrTrackerShutdown = errors.New("tracker is shut down")

// Config holds configuration for the tracker.
type Config struct {
	Sources                platform.Resolver
	StatusLog              storage.StatusLogger // Optional
	Notifier               notify.Notifier      // Optional
	SnapshotCache          cache.Cache          // Optional: shares order fetches within SnapshotTTL
	SnapshotTTL            time.Duration
	MaxSubscriptions       int
	DefaultPollingInterval time.Duration
	DefaultTimeout         time.Duration
	RequestTimeout         time.Duration // Per-poll collaborator deadline
	Logger                 *zap.Logger
}

// Tracker manages order polling subscriptions.
type Tracker struct {
	resolver        platform.Resolver
	statusLog       storage.StatusLogger
	notifier        notify.Notifier
	snapshots       cache.Cache
	snapshotTTL     time.Duration
	maxSubs         int
	defaultInterval time.Duration
	defaultTimeout  time.Duration
	requestTimeout  time.Duration
	logger          *zap.Logger
	now             func() time.Time

	wg            sync.WaitGroup
	mu            sync.Mutex
	subscriptions map[string]*Subscription
	sources       map[types.Platform]platform.OrderSource
	closed        bool
}

// New creates a tracker.
func New(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Sources == nil {
		return nil, errors.New("order sources are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxSubs := cfg.MaxSubscriptions
	if maxSubs <= 0 {
		maxSubs = DefaultMaxSubscriptions
	}
	interval := cfg.DefaultPollingInterval
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	return &Tracker{
		resolver:        cfg.Sources,
		statusLog:       cfg.StatusLog,
		notifier:        cfg.Notifier,
		snapshots:       cfg.SnapshotCache,
		snapshotTTL:     cfg.SnapshotTTL,
		maxSubs:         maxSubs,
		defaultInterval: interval,
		defaultTimeout:  timeout,
		requestTimeout:  requestTimeout,
		logger:          logger,
		now:             time.Now,
		subscriptions:   make(map[string]*Subscription),
		sources:         make(map[types.Platform]platform.OrderSource),
	}, nil
}

// TrackOrder starts polling orderID on p. It fails with a
// *types.CapacityError once MaxSubscriptions are active.
func (t *Tracker) TrackOrder(p types.Platform, orderID string, opts TrackOptions) (*Subscription, error) {
	if !p.Valid() {
		return nil, &types.ValidationError{Field: "platform", Message: fmt.Sprintf("unsupported platform: %s", p)}
	}
	if orderID == "" {
		return nil, &types.ValidationError{Field: "orderId", Message: "order ID is required"}
	}

	interval := opts.PollingInterval
	if interval <= 0 {
		interval = t.defaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	stopOnTerminal := true
	if opts.StopOnTerminal != nil {
		stopOnTerminal = *opts.StopOnTerminal
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		id:              uuid.New().String(),
		platform:        p,
		orderID:         orderID,
		pollingInterval: interval,
		timeout:         timeout,
		stopOnTerminal:  stopOnTerminal,
		createdAt:       t.now(),
		tracker:         t,
		ctx:             ctx,
		cancel:          cancel,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		return nil, ErrTrackerShutdown
	}
	if len(t.subscriptions) >= t.maxSubs {
		t.mu.Unlock()
		cancel()
		CapacityRejectionsTotal.Inc()
		return nil, &types.CapacityError{Limit: t.maxSubs}
	}
	t.subscriptions[sub.id] = sub
	active := len(t.subscriptions)
	t.wg.Add(1)
	t.mu.Unlock()

	ActiveSubscriptions.Set(float64(active))
	t.logger.Info("order-tracking-started",
		zap.String("subscription-id", sub.id),
		zap.String("platform", string(p)),
		zap.String("order-id", orderID),
		zap.Duration("polling-interval", interval),
		zap.Duration("timeout", timeout))

	go t.run(sub)

	return sub, nil
}

// run owns the subscription's polling ticker and timeout timer. Both stop
// when the subscription's context is cancelled.
func (t *Tracker) run(sub *Subscription) {
	defer t.wg.Done()

	ticker := time.NewTicker(sub.pollingInterval)
	timeout := time.NewTimer(sub.timeout)
	defer func() {
		ticker.Stop()
		timeout.Stop()
	}()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-timeout.C:
			t.logger.Info("order-tracking-timeout",
				zap.String("subscription-id", sub.id),
				zap.String("order-id", sub.orderID))
			t.remove(sub.id, "timeout")
			return
		case <-ticker.C:
			t.poll(sub)
		}
	}
}

// poll runs one tick for sub.
func (t *Tracker) poll(sub *Subscription) {
	if !t.isActive(sub) {
		return
	}

	source, err := t.source(sub.platform)
	if err != nil {
		PollsTotal.WithLabelValues(string(sub.platform), "error").Inc()
		t.deliverError(sub, &types.CollaboratorError{
			Platform: sub.platform, OrderID: sub.orderID, Op: "resolve", Err: err,
		})
		return
	}

	ctx, cancel := context.WithTimeout(sub.ctx, t.requestTimeout)
	defer cancel()

	order, err := source.GetOrder(ctx, sub.orderID)
	if err != nil {
		if sub.ctx.Err() != nil {
			return
		}
		PollsTotal.WithLabelValues(string(sub.platform), "error").Inc()
		t.deliverError(sub, &types.CollaboratorError{
			Platform: sub.platform, OrderID: sub.orderID, Op: "get-order", Err: err,
		})
		return
	}
	if order == nil {
		PollsTotal.WithLabelValues(string(sub.platform), "not-found").Inc()
		t.deliverError(sub, &types.CollaboratorError{
			Platform: sub.platform, OrderID: sub.orderID, Op: "not-found",
			Err: &types.NotFoundError{Kind: "order", ID: sub.orderID},
		})
		return
	}

	if !t.isActive(sub) {
		return
	}

	now := t.now()
	previous, changed := sub.observe(order, now)
	if !changed {
		PollsTotal.WithLabelValues(string(sub.platform), "unchanged").Inc()
		return
	}
	PollsTotal.WithLabelValues(string(sub.platform), "changed").Inc()
	TransitionsTotal.WithLabelValues(string(sub.platform), string(order.Status)).Inc()

	update := types.OrderStatusUpdate{
		OrderID:        sub.orderID,
		Platform:       sub.platform,
		PreviousStatus: previous,
		NewStatus:      order.Status,
		Order:          *order,
		Timestamp:      now,
	}

	if order.Status.HasFills() {
		fills, err := source.GetTrades(ctx, types.TradeFilter{
			OrderID:  sub.orderID,
			MarketID: order.MarketID,
		})
		if err != nil {
			t.logger.Warn("order-fills-fetch-failed",
				zap.String("subscription-id", sub.id),
				zap.String("order-id", sub.orderID),
				zap.Error(err))
		} else {
			update.Fills = fills
		}
	}

	t.logger.Info("order-status-changed",
		zap.String("subscription-id", sub.id),
		zap.String("platform", string(sub.platform)),
		zap.String("order-id", sub.orderID),
		zap.String("previous-status", string(previous)),
		zap.String("new-status", string(order.Status)),
		zap.Int("fills", len(update.Fills)))

	t.deliverUpdate(sub, update)
	t.sideEffects(&update)

	if sub.stopOnTerminal && order.Status.IsTerminal() {
		t.remove(sub.id, "terminal")
	}
}

func (t *Tracker) isActive(sub *Subscription) bool {
	if sub.ctx.Err() != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.subscriptions[sub.id]
	return ok
}

// source resolves and memoizes the order source for p.
func (t *Tracker) source(p types.Platform) (platform.OrderSource, error) {
	t.mu.Lock()
	src, ok := t.sources[p]
	t.mu.Unlock()
	if ok {
		return src, nil
	}

	src, err := t.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	if t.snapshots != nil && t.snapshotTTL > 0 {
		src = platform.NewCachedSource(p, src, t.snapshots, t.snapshotTTL)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.sources[p]; ok {
		return existing, nil
	}
	t.sources[p] = src
	return src, nil
}

func (t *Tracker) deliverUpdate(sub *Subscription, update types.OrderStatusUpdate) {
	for _, fn := range sub.statusListeners() {
		t.invoke(sub, "status", func() { fn(update) })
	}
}

func (t *Tracker) deliverError(sub *Subscription, err error) {
	t.logger.Debug("order-poll-failed",
		zap.String("subscription-id", sub.id),
		zap.String("order-id", sub.orderID),
		zap.Error(err))

	for _, fn := range sub.errorListeners() {
		t.invoke(sub, "error", func() { fn(err) })
	}
}

func (t *Tracker) invoke(sub *Subscription, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			ListenerPanicsTotal.WithLabelValues(kind).Inc()
			t.logger.Error("tracker-listener-panic",
				zap.String("subscription-id", sub.id),
				zap.String("kind", kind),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// sideEffects logs and notifies. Failures are logged and dropped.
func (t *Tracker) sideEffects(update *types.OrderStatusUpdate) {
	if t.statusLog == nil && t.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if t.statusLog != nil {
		if err := t.statusLog.LogStatusChange(ctx, storage.NewStatusChange(update)); err != nil {
			SideEffectFailuresTotal.WithLabelValues("status-log").Inc()
			t.logger.Warn("status-log-failed",
				zap.String("order-id", update.OrderID),
				zap.Error(err))
		}
	}

	if t.notifier != nil {
		if n, ok := notify.Render(update); ok {
			if err := t.notifier.Notify(ctx, n); err != nil {
				SideEffectFailuresTotal.WithLabelValues("notify").Inc()
				t.logger.Warn("notification-failed",
					zap.String("order-id", update.OrderID),
					zap.Error(err))
			}
		}
	}
}

// StopTracking stops a subscription. Unknown or already stopped IDs are a
// no-op.
func (t *Tracker) StopTracking(id string) {
	t.remove(id, "manual")
}

func (t *Tracker) remove(id, reason string) {
	t.mu.Lock()
	sub, ok := t.subscriptions[id]
	if ok {
		delete(t.subscriptions, id)
	}
	active := len(t.subscriptions)
	src := t.sources[platformOf(sub)]
	t.mu.Unlock()

	if !ok {
		return
	}

	sub.cancel()
	sub.clearCache()
	if cached, isCached := src.(*platform.CachedSource); isCached {
		cached.Invalidate(sub.orderID)
	}

	ActiveSubscriptions.Set(float64(active))
	SubscriptionsStoppedTotal.WithLabelValues(reason).Inc()
	t.logger.Info("order-tracking-stopped",
		zap.String("subscription-id", id),
		zap.String("order-id", sub.orderID),
		zap.String("reason", reason))
}

func platformOf(sub *Subscription) types.Platform {
	if sub == nil {
		return ""
	}
	return sub.platform
}

// Shutdown stops every subscription, waits for in-flight polls to return
// and clears the shared caches. Later TrackOrder calls fail with
// ErrTrackerShutdown. It must not be called from a subscription listener.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	t.closed = true
	subs := make([]*Subscription, 0, len(t.subscriptions))
	for _, sub := range t.subscriptions {
		subs = append(subs, sub)
	}
	t.subscriptions = make(map[string]*Subscription)
	t.sources = make(map[types.Platform]platform.OrderSource)
	t.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		sub.clearCache()
		SubscriptionsStoppedTotal.WithLabelValues("shutdown").Inc()
	}

	t.wg.Wait()

	if t.snapshots != nil {
		t.snapshots.Clear()
	}

	ActiveSubscriptions.Set(0)
	t.logger.Info("order-tracker-shutdown", zap.Int("stopped", len(subs)))
}

// Get returns the subscription with id, or nil.
func (t *Tracker) Get(id string) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscriptions[id]
}

// ActiveSubscriptions lists active subscriptions, oldest first.
func (t *Tracker) ActiveSubscriptions() []SubscriptionInfo {
	t.mu.Lock()
	subs := make([]*Subscription, 0, len(t.subscriptions))
	for _, sub := range t.subscriptions {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	out := make([]SubscriptionInfo, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of active subscriptions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscriptions)
}
