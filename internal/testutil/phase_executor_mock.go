package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/pkg/types"
)

// MockPhaseExecutor simulates chain and venue actions for testing.
type MockPhaseExecutor struct {
	mu       sync.Mutex
	failures map[types.ExecutionPhase]int // Remaining failures per phase
	calls    []types.ExecutionPhase
	counter  int
}

// NewMockPhaseExecutor creates an executor that succeeds on every phase.
func NewMockPhaseExecutor() *MockPhaseExecutor {
	return &MockPhaseExecutor{failures: make(map[types.ExecutionPhase]int)}
}

// FailPhase makes the next n calls for phase fail.
func (m *MockPhaseExecutor) FailPhase(phase types.ExecutionPhase, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[phase] = n
}

// ExecutePhase records the call and returns a synthetic tx hash.
func (m *MockPhaseExecutor) ExecutePhase(_ context.Context, req execution.PhaseRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req.Phase)
	if m.failures[req.Phase] > 0 {
		m.failures[req.Phase]--
		return "", fmt.Errorf("mock %s failure", req.Phase)
	}

	m.counter++
	return fmt.Sprintf("0xmock%s%04d", req.Phase, m.counter), nil
}

// Calls returns the phases executed, in order.
func (m *MockPhaseExecutor) Calls() []types.ExecutionPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ExecutionPhase(nil), m.calls...)
}

// Reset clears recorded calls and scripted failures.
func (m *MockPhaseExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.counter = 0
	m.failures = make(map[types.ExecutionPhase]int)
}
