package execution

import (
	"fmt"
	"time"

	"github.com/mselser95/polybridge/pkg/types"
	"go.uber.org/zap"
)

// ProgressEvent is emitted once per phase transition.
type ProgressEvent struct {
	ExecutionID  string                    `json:"executionId"`
	IntentID     string                    `json:"intentId"`
	Phase        types.ExecutionPhase      `json:"phase"`
	Transactions types.TransactionEvidence `json:"transactions"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// CompletionEvent is emitted once per successful full flow.
type CompletionEvent struct {
	Result    *ExecutionResult `json:"result"`
	Timestamp time.Time        `json:"timestamp"`
}

// ProgressListener receives progress events. Listeners run synchronously on
// the executing goroutine in registration order and must not block
// indefinitely; a slow listener delays the run that emitted the event.
type ProgressListener func(ProgressEvent)

// CompletionListener receives completion events under the same contract as
// ProgressListener.
type CompletionListener func(CompletionEvent)

type progressListener struct {
	id uint64
	fn ProgressListener
}

type completionListener struct {
	id uint64
	fn CompletionListener
}

// OnProgress registers fn and returns a function that removes it.
func (e *Engine) OnProgress(fn ProgressListener) (unsubscribe func()) {
	e.listenerMu.Lock()
	e.nextListenerID++
	id := e.nextListenerID
	e.progressListeners = append(e.progressListeners, progressListener{id: id, fn: fn})
	e.listenerMu.Unlock()

	return func() {
		e.listenerMu.Lock()
		defer e.listenerMu.Unlock()
		for i, l := range e.progressListeners {
			if l.id == id {
				e.progressListeners = append(e.progressListeners[:i:i], e.progressListeners[i+1:]...)
				return
			}
		}
	}
}

// OnCompletion registers fn and returns a function that removes it.
func (e *Engine) OnCompletion(fn CompletionListener) (unsubscribe func()) {
	e.listenerMu.Lock()
	e.nextListenerID++
	id := e.nextListenerID
	e.completedListeners = append(e.completedListeners, completionListener{id: id, fn: fn})
	e.listenerMu.Unlock()

	return func() {
		e.listenerMu.Lock()
		defer e.listenerMu.Unlock()
		for i, l := range e.completedListeners {
			if l.id == id {
				e.completedListeners = append(e.completedListeners[:i:i], e.completedListeners[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) emitProgress(event ProgressEvent) {
	e.listenerMu.Lock()
	listeners := append([]progressListener(nil), e.progressListeners...)
	e.listenerMu.Unlock()

	for _, l := range listeners {
		e.invoke("progress", func() { l.fn(event) })
	}
}

func (e *Engine) emitCompletion(event CompletionEvent) {
	e.listenerMu.Lock()
	listeners := append([]completionListener(nil), e.completedListeners...)
	e.listenerMu.Unlock()

	for _, l := range listeners {
		e.invoke("completion", func() { l.fn(event) })
	}
}

// invoke runs fn, converting a panic into a log line.
func (e *Engine) invoke(kind string, fn func()) {
	defer func() {
		r := recover()
		if r != nil {
			ListenerPanicsTotal.WithLabelValues(kind).Inc()
			e.logger.Error("execution-listener-panic",
				zap.String("kind", kind),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
